// Package browser manages the Chrome lifecycle for page mapping: stealth
// launch, fingerprint injection, and human-paced navigation.
//
// Each logical request owns one Browser (process + page); there is no page
// pooling. Close must be called on every path once Launch succeeds.
package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrLaunch wraps failures to start or connect to the Chrome process.
var ErrLaunch = errors.New("browser: launch failed")

// Config configures a stealth browser instance.
type Config struct {
	// Headless controls the Chrome display mode. Interactive login
	// escalation requires headless=false.
	Headless bool

	// Profile is the fingerprint applied to every new page.
	// Zero value means DefaultProfile.
	Profile Profile

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Profile.UserAgent == "" {
		c.Profile = DefaultProfile()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser wraps a Chrome process with anti-detection countermeasures.
type Browser struct {
	cfg       Config
	browser   *rod.Browser
	lnch      *launcher.Launcher
	closeOnce sync.Once
}

// Launch starts Chrome with automation-hiding flags and connects to it.
// The caller must Close the returned Browser exactly once.
func Launch(cfg Config) (*Browser, error) {
	cfg.defaults()

	l := launcher.New().
		Headless(cfg.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-infobars").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("window-size", fmt.Sprintf("%d,%d", cfg.Profile.ViewportWidth, cfg.Profile.ViewportHeight))

	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("%w: connect: %v", ErrLaunch, err)
	}

	cfg.Logger.Debug("browser: launched", "headless", cfg.Headless)
	return &Browser{cfg: cfg, browser: b, lnch: l}, nil
}

// NewPage creates a stealth page with the fingerprint profile injected
// before the first script of any navigated document executes.
func (b *Browser) NewPage() (*rod.Page, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	// Fingerprint overrides must land before document scripts, so they go
	// through Page.addScriptToEvaluateOnNewDocument rather than Eval.
	if _, err := page.EvalOnNewDocument(b.cfg.Profile.InitScript()); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: inject profile: %w", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      b.cfg.Profile.UserAgent,
		AcceptLanguage: b.cfg.Profile.Locale,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: set user agent: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.cfg.Profile.ViewportWidth,
		Height:            b.cfg.Profile.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: set viewport: %w", err)
	}

	if b.cfg.Profile.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{
			TimezoneID: b.cfg.Profile.Timezone,
		}).Call(page); err != nil {
			b.cfg.Logger.Warn("browser: timezone override failed", "error", err)
		}
	}

	return page, nil
}

// Cookies returns all cookies held by the browser, across domains.
func (b *Browser) Cookies() ([]*proto.NetworkCookie, error) {
	return b.browser.GetCookies()
}

// SetCookies restores previously captured cookies into the browser.
func (b *Browser) SetCookies(cookies []*proto.NetworkCookie) error {
	return b.browser.SetCookies(proto.CookiesToParams(cookies))
}

// Close releases the Chrome process. Safe to call multiple times; only the
// first call takes effect.
func (b *Browser) Close() {
	b.closeOnce.Do(func() {
		if b.browser != nil {
			if err := b.browser.Close(); err != nil {
				b.cfg.Logger.Warn("browser: close failed", "error", err)
			}
		}
		if b.lnch != nil {
			b.lnch.Cleanup()
		}
		b.cfg.Logger.Debug("browser: closed")
	})
}
