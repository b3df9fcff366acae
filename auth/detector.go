// Package auth detects authentication walls, persists login sessions per
// domain, and escalates to an interactive login flow when a session is
// missing or stale.
package auth

import (
	"context"
	"strings"
)

// Signal weights. Independent sources each contribute a fixed amount
// toward the confidence score, which is capped at 1.0.
const (
	weightStatus401   = 0.9
	weightStatus403   = 0.8
	weightLoginPath   = 0.7
	weightCrossDomain = 0.5
	weightLoginForm   = 0.6
	weightAuthWall    = 0.5

	// DefaultThreshold is the confidence at or above which a page is
	// considered auth-gated.
	DefaultThreshold = 0.7
)

// DefaultLoginPathPatterns are URL path fragments that indicate a redirect
// to a login flow.
var DefaultLoginPathPatterns = []string{"/login", "/signin", "/auth", "/sso", "/oauth"}

// DefaultLoginFormSelectors match login form elements, most specific first.
var DefaultLoginFormSelectors = []string{
	`input[type="password"]`,
	`form[action*="login"]`,
	`form[action*="signin"]`,
	`form[id*="login"]`,
	`button[type="submit"][name*="login"]`,
}

// DefaultAuthWallSelectors match paywall or sign-in-wall overlays.
var DefaultAuthWallSelectors = []string{
	`[class*="paywall"]`,
	`[class*="auth-wall"]`,
	`[class*="login-wall"]`,
	`[id*="paywall"]`,
	`[data-testid*="login-required"]`,
}

// DOMProbe answers whether a selector matches on the current page. The
// browser-backed implementation lives with the orchestrator; tests supply
// fakes.
type DOMProbe interface {
	Has(ctx context.Context, selector string) (bool, error)
}

// Detection is the outcome of a detect call. It is a heuristic: callers
// must treat Required=false as "proceed", not as a guarantee the page is
// public.
type Detection struct {
	Required   bool     `json:"required"`
	Confidence float64  `json:"confidence"`
	Signals    []string `json:"signals"`
}

// DetectorConfig overrides the detection parameters. Zero values fall back
// to the package defaults.
type DetectorConfig struct {
	Threshold          float64
	LoginPathPatterns  []string
	LoginFormSelectors []string
	AuthWallSelectors  []string
}

func (c *DetectorConfig) defaults() {
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.LoginPathPatterns == nil {
		c.LoginPathPatterns = DefaultLoginPathPatterns
	}
	if c.LoginFormSelectors == nil {
		c.LoginFormSelectors = DefaultLoginFormSelectors
	}
	if c.AuthWallSelectors == nil {
		c.AuthWallSelectors = DefaultAuthWallSelectors
	}
}

// Detector scores authentication signals. State-free; one instance serves
// all requests.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector creates a Detector with the given configuration.
func NewDetector(cfg DetectorConfig) *Detector {
	cfg.defaults()
	return &Detector{cfg: cfg}
}

// Detect combines HTTP status, URL divergence, and DOM signals into a
// confidence score clamped to [0,1]. Each DOM category contributes at most
// once: the first matching selector short-circuits its category. Probe
// errors are treated as "no match" since detection must tolerate flaky
// pages.
func (d *Detector) Detect(ctx context.Context, probe DOMProbe, targetURL, finalURL string, statusCode int) Detection {
	var confidence float64
	var signals []string

	switch statusCode {
	case 401:
		confidence += weightStatus401
		signals = append(signals, "http_401")
	case 403:
		confidence += weightStatus403
		signals = append(signals, "http_403")
	}

	if matchesLoginPath(finalURL, d.cfg.LoginPathPatterns) {
		confidence += weightLoginPath
		signals = append(signals, "login_path_redirect")
	}
	if crossDomain(targetURL, finalURL) {
		confidence += weightCrossDomain
		signals = append(signals, "cross_domain_redirect")
	}

	if probe != nil {
		if sel := firstMatch(ctx, probe, d.cfg.LoginFormSelectors); sel != "" {
			confidence += weightLoginForm
			signals = append(signals, "login_form:"+sel)
		}
		if sel := firstMatch(ctx, probe, d.cfg.AuthWallSelectors); sel != "" {
			confidence += weightAuthWall
			signals = append(signals, "auth_wall:"+sel)
		}
	}

	confidence = clamp01(confidence)
	return Detection{
		Required:   confidence >= d.cfg.Threshold,
		Confidence: confidence,
		Signals:    signals,
	}
}

func firstMatch(ctx context.Context, probe DOMProbe, selectors []string) string {
	for _, sel := range selectors {
		ok, err := probe.Has(ctx, sel)
		if err != nil {
			continue
		}
		if ok {
			return sel
		}
	}
	return ""
}

func matchesLoginPath(rawURL string, patterns []string) bool {
	u := strings.ToLower(rawURL)
	path := u
	if i := strings.Index(u, "://"); i >= 0 {
		path = u[i+3:]
	}
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[i:]
	} else {
		path = "/"
	}
	for _, p := range patterns {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

func crossDomain(targetURL, finalURL string) bool {
	if targetURL == "" || finalURL == "" {
		return false
	}
	return hostOf(targetURL) != hostOf(finalURL)
}

func hostOf(rawURL string) string {
	s := strings.ToLower(rawURL)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
