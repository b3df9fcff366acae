package marrow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/marrow/auth"
	"github.com/hazyhaar/marrow/browser"
	"github.com/hazyhaar/marrow/snapshot"
)

// BrowserSource is the production PageSource: every call launches its own
// stealth browser, navigates once, and releases the process on all paths.
// No page is shared across concurrent logical requests.
type BrowserSource struct {
	cfg    *Config
	vault  *auth.Vault
	logger *slog.Logger
}

// NewBrowserSource creates a per-request browser source.
func NewBrowserSource(cfg *Config, vault *auth.Vault, logger *slog.Logger) *BrowserSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserSource{cfg: cfg, vault: vault, logger: logger}
}

// Snapshot launches a browser, replays any stored session for the URL's
// domain, navigates with human pacing, scrolls to trigger lazy loading,
// and captures the bounded snapshot.
func (s *BrowserSource) Snapshot(ctx context.Context, target string) (*snapshot.PageSnapshot, error) {
	nav, cleanup, err := s.openPage(ctx, target)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := nav.ScrollDown(ctx, s.cfg.ScrollCount); err != nil {
		// lazy-load scrolling is best-effort, the page is already loaded
		s.logger.Debug("marrow: scroll failed", "url", target, "error", err)
	}
	return snapshot.Capture(ctx, nav.Page())
}

// Extract navigates once and evaluates each selector independently. A
// failing selector records nil; partial success is the steady state
// against a live, possibly-changed page.
func (s *BrowserSource) Extract(ctx context.Context, target string, selectors []string) (map[string]*string, error) {
	nav, cleanup, err := s.openPage(ctx, target)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	results := make(map[string]*string, len(selectors))
	for _, sel := range selectors {
		text, err := evalSelector(ctx, nav.Page(), sel)
		if err != nil || text == "" {
			if err != nil {
				s.logger.Debug("marrow: selector failed", "selector", sel, "error", err)
			}
			results[sel] = nil
			continue
		}
		t := text
		results[sel] = &t
	}
	return results, nil
}

// CheckAuth navigates to target and scores authentication signals on the
// live page. The HTTP status is not observable after navigation settles,
// so detection leans on redirect divergence and DOM structure.
func (s *BrowserSource) CheckAuth(ctx context.Context, target string) (*auth.Detection, error) {
	nav, cleanup, err := s.openPage(ctx, target)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	detector := auth.NewDetector(auth.DetectorConfig{})
	det := detector.Detect(ctx, pageProbe{nav.Page()}, target, nav.CurrentURL(ctx), 0)
	return &det, nil
}

// pageProbe adapts a rod page to the detector's DOM probe.
type pageProbe struct {
	page *rod.Page
}

func (p pageProbe) Has(ctx context.Context, selector string) (bool, error) {
	res, err := p.page.Context(ctx).Eval(`(sel) => document.querySelector(sel) !== null`, selector)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// openPage brackets one browser lifecycle: launch, session replay,
// stealth page, navigation. The cleanup releases both the page and the
// Chrome process and must be deferred by the caller.
func (s *BrowserSource) openPage(ctx context.Context, target string) (*browser.Navigator, func(), error) {
	b, err := browser.Launch(browser.Config{Headless: s.cfg.Headless, Logger: s.logger})
	if err != nil {
		return nil, nil, err
	}

	s.restoreSession(b, target)

	page, err := b.NewPage()
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	cleanup := func() {
		page.Close()
		b.Close()
	}

	nav := browser.NewNavigator(page)
	if err := nav.Goto(ctx, target); err != nil {
		cleanup()
		return nil, nil, err
	}
	return nav, cleanup, nil
}

// restoreSession replays stored cookies for the URL's domain, if any.
// Failures are logged and ignored: an expired session degrades to an
// anonymous visit, which auth detection will flag downstream.
func (s *BrowserSource) restoreSession(b *browser.Browser, target string) {
	if s.vault == nil {
		return
	}
	domain := hostOf(target)
	if domain == "" || !s.vault.Exists(domain) {
		return
	}

	rec, err := s.vault.Load(domain)
	if err != nil {
		s.logger.Warn("marrow: session load failed", "domain", domain, "error", err)
		return
	}

	var state browser.StorageState
	if err := json.Unmarshal(rec.StorageState, &state); err != nil {
		s.logger.Warn("marrow: session decode failed", "domain", domain, "error", err)
		return
	}
	if err := b.RestoreState(&state); err != nil {
		s.logger.Warn("marrow: session replay failed", "domain", domain, "error", err)
		return
	}
	s.logger.Debug("marrow: session restored", "domain", domain, "cookies", len(state.Cookies))
}

// evalSelector resolves one locator against the page and returns the
// matched element's trimmed text. Supports CSS selectors and XPath
// (prefixed with "//" or "xpath=").
func evalSelector(ctx context.Context, page *rod.Page, selector string) (string, error) {
	js := `(sel) => {
		let el;
		if (sel.startsWith('//') || sel.startsWith('xpath=')) {
			const expr = sel.startsWith('xpath=') ? sel.slice(6) : sel;
			el = document.evaluate(expr, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		} else {
			el = document.querySelector(sel);
		}
		if (!el) return null;
		return (el.innerText || el.textContent || el.value || '').trim();
	}`
	res, err := page.Context(ctx).Eval(js, selector)
	if err != nil {
		return "", fmt.Errorf("marrow: eval selector %q: %w", selector, err)
	}
	if res.Value.Nil() {
		return "", nil
	}
	return res.Value.Str(), nil
}

// hostOf extracts the lowercased hostname from a URL, empty on failure.
func hostOf(raw string) string {
	u, err := url.Parse(CompleteURL(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
