package snapshot

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// promptPolicy strips scripts, styles, and event handlers while keeping the
// structural markup and locator-bearing attributes (id, class, data-*,
// aria-*) that discovery needs to propose stable selectors.
var promptPolicy = sync.OnceValue(func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"html", "head", "title", "body",
		"header", "nav", "main", "footer", "section", "article", "aside",
		"div", "span", "p", "a", "img",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "dl", "dt", "dd",
		"table", "thead", "tbody", "tfoot", "tr", "td", "th", "caption",
		"form", "fieldset", "legend", "label",
		"input", "button", "select", "option", "optgroup", "textarea",
		"strong", "em", "b", "i", "small", "code", "pre", "blockquote",
	)

	p.AllowAttrs("id", "class", "role", "name", "type", "placeholder",
		"title", "value", "for", "action", "method").Globally()
	p.AllowAttrs("href", "rel", "target").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("aria-label", "aria-labelledby", "aria-describedby",
		"aria-hidden", "aria-expanded").Globally()
	p.AllowDataAttributes()

	return p
})

// Clean sanitizes raw HTML for inclusion in a model prompt and collapses
// runs of whitespace that sanitation leaves behind.
func Clean(raw string) string {
	out := promptPolicy().Sanitize(raw)
	return collapseWhitespace(out)
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}
