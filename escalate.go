package marrow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/marrow/auth"
	"github.com/hazyhaar/marrow/browser"
)

// EscalateLogin opens a visible browser at the URL and waits for the
// user to complete login interactively. The captured session lands in
// the vault and is replayed automatically by later mapping visits to
// the same domain.
func (c *Client) EscalateLogin(ctx context.Context, urlPattern string) (*auth.EscalateResult, error) {
	if c.vault == nil {
		return nil, fmt.Errorf("marrow: no session vault configured")
	}

	esc := auth.NewEscalator(auth.EscalatorConfig{}, c.vault, visibleProbeFactory(c.logger), c.logger)
	target := CompleteURL(urlPattern)

	domain := hostOf(target)
	if existing, err := c.vault.Load(domain); err == nil {
		return esc.EscalateWithSession(ctx, target, existing)
	}
	return esc.Escalate(ctx, target)
}

// visibleProbeFactory opens a headed browser for interactive login.
func visibleProbeFactory(logger *slog.Logger) auth.ProbeFactory {
	return func(ctx context.Context, target string) (auth.LoginProbe, error) {
		b, err := browser.Launch(browser.Config{Headless: false, Logger: logger})
		if err != nil {
			return nil, err
		}
		page, err := b.NewPage()
		if err != nil {
			b.Close()
			return nil, err
		}
		nav := browser.NewNavigator(page)
		if err := nav.Goto(ctx, target); err != nil {
			page.Close()
			b.Close()
			return nil, err
		}
		return &rodProbe{browser: b, page: page, nav: nav}, nil
	}
}

// rodProbe adapts a live browser page to the escalator's polling surface.
type rodProbe struct {
	browser *browser.Browser
	page    *rod.Page
	nav     *browser.Navigator
}

func (p *rodProbe) CurrentURL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *rodProbe) HasAny(ctx context.Context, selectors []string) (bool, error) {
	for _, sel := range selectors {
		res, err := p.page.Context(ctx).Eval(`(sel) => document.querySelector(sel) !== null`, sel)
		if err != nil {
			return false, err
		}
		if res.Value.Bool() {
			return true, nil
		}
	}
	return false, nil
}

func (p *rodProbe) CaptureState(ctx context.Context) (json.RawMessage, error) {
	state, err := p.browser.CaptureState()
	if err != nil {
		return nil, err
	}
	return json.Marshal(state)
}

func (p *rodProbe) RestoreState(ctx context.Context, raw json.RawMessage) error {
	var state browser.StorageState
	if err := json.Unmarshal(raw, &state); err != nil {
		return err
	}
	if err := p.browser.RestoreState(&state); err != nil {
		return err
	}
	// restored cookies only apply on a fresh document
	return p.nav.Goto(ctx, p.nav.CurrentURL(ctx))
}

func (p *rodProbe) Close() {
	p.page.Close()
	p.browser.Close()
}
