package browser

import (
	"fmt"
	"strings"
)

// Patch overrides one JavaScript property before any page script runs.
// Value is a JavaScript expression evaluated in the page context.
type Patch struct {
	Property string
	Value    string
}

// Profile is the declarative fingerprint applied to every new page. Keeping
// the evasion surface as data makes it auditable and testable without a
// running browser.
type Profile struct {
	UserAgent      string
	Locale         string
	Timezone       string
	ViewportWidth  int
	ViewportHeight int

	// WebGLVendor and WebGLRenderer replace the headless GPU strings
	// reported by WebGL parameter queries.
	WebGLVendor   string
	WebGLRenderer string

	// Patches are property overrides injected before first script
	// execution. Applied in order.
	Patches []Patch
}

// DefaultProfile returns the stock desktop Chrome fingerprint.
func DefaultProfile() Profile {
	return Profile{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Locale:         "en-US",
		Timezone:       "America/New_York",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		WebGLVendor:    "Intel Inc.",
		WebGLRenderer:  "Intel Iris OpenGL Engine",
		Patches: []Patch{
			{Property: "navigator.webdriver", Value: "undefined"},
			{Property: "navigator.languages", Value: `["en-US", "en"]`},
			{Property: "navigator.plugins", Value: "[1, 2, 3, 4, 5]"},
			{Property: "navigator.hardwareConcurrency", Value: "8"},
			{Property: "navigator.deviceMemory", Value: "8"},
		},
	}
}

// InitScript renders the profile as a single script suitable for
// injection via Page.evaluateOnNewDocument. Property patches come first so
// detection scripts running at document_start already see the overrides.
func (p Profile) InitScript() string {
	var b strings.Builder
	b.WriteString("() => {\n")

	for _, patch := range p.Patches {
		obj, prop, ok := splitProperty(patch.Property)
		if !ok {
			continue
		}
		fmt.Fprintf(&b,
			"Object.defineProperty(%s, '%s', { get: () => %s, configurable: true });\n",
			obj, prop, patch.Value)
	}

	if p.WebGLVendor != "" || p.WebGLRenderer != "" {
		fmt.Fprintf(&b, `
const glProto = WebGLRenderingContext.prototype;
const origGetParameter = glProto.getParameter;
glProto.getParameter = function (param) {
	if (param === 37445) return '%s';
	if (param === 37446) return '%s';
	return origGetParameter.call(this, param);
};
`, p.WebGLVendor, p.WebGLRenderer)
	}

	b.WriteString("}")
	return b.String()
}

// splitProperty splits "navigator.webdriver" into its holder object and
// final property name. Only dotted paths with at least two segments are
// patchable.
func splitProperty(path string) (obj, prop string, ok bool) {
	i := strings.LastIndex(path, ".")
	if i <= 0 || i == len(path)-1 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}
