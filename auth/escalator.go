package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// DefaultSuccessSelectors indicate a logged-in state: profile widgets,
// avatars, logout links.
var DefaultSuccessSelectors = []string{
	`[class*="avatar"]`,
	`[class*="profile"]`,
	`a[href*="logout"]`,
	`a[href*="signout"]`,
	`[data-testid*="user-menu"]`,
	`button[aria-label*="account"]`,
}

// LoginProbe is the browser surface the escalator polls. The production
// implementation wraps a visible browser page; tests supply fakes with
// scripted timelines.
type LoginProbe interface {
	// CurrentURL returns the page's present location.
	CurrentURL(ctx context.Context) (string, error)
	// HasAny reports whether any of the selectors match.
	HasAny(ctx context.Context, selectors []string) (bool, error)
	// CaptureState serializes the browser session (cookies, storage).
	CaptureState(ctx context.Context) (json.RawMessage, error)
	// RestoreState loads a previously captured session before navigation.
	RestoreState(ctx context.Context, state json.RawMessage) error
	// Close releases the browser. Called exactly once per probe.
	Close()
}

// ProbeFactory opens a visible browser, navigates to url, and returns a
// probe over the live page.
type ProbeFactory func(ctx context.Context, url string) (LoginProbe, error)

// EscalateResult reports the outcome of an interactive login.
type EscalateResult struct {
	Success bool   `json:"success"`
	Domain  string `json:"domain,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EscalatorConfig tunes the interactive login flow.
type EscalatorConfig struct {
	// PollInterval between login-completion checks. Default: 1s.
	PollInterval time.Duration
	// Timeout is the overall budget for the user to finish logging in.
	// Default: 300s.
	Timeout time.Duration

	LoginPathPatterns []string
	SuccessSelectors  []string
}

func (c *EscalatorConfig) defaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 300 * time.Second
	}
	if c.LoginPathPatterns == nil {
		c.LoginPathPatterns = DefaultLoginPathPatterns
	}
	if c.SuccessSelectors == nil {
		c.SuccessSelectors = DefaultSuccessSelectors
	}
}

// Escalator runs the human-in-the-loop login flow: open a visible browser,
// wait for the user to authenticate, capture the session into the vault.
type Escalator struct {
	cfg      EscalatorConfig
	vault    *Vault
	openPage ProbeFactory
	logger   *slog.Logger
}

// NewEscalator creates an Escalator. openPage supplies the visible browser
// page for each escalation.
func NewEscalator(cfg EscalatorConfig, vault *Vault, openPage ProbeFactory, logger *slog.Logger) *Escalator {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Escalator{cfg: cfg, vault: vault, openPage: openPage, logger: logger}
}

// Escalate opens a visible browser at url and polls until the user
// completes login or the budget expires. On success the captured session
// is saved to the vault under the url's domain. On failure nothing is
// persisted.
func (e *Escalator) Escalate(ctx context.Context, url string) (*EscalateResult, error) {
	probe, err := e.openPage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("auth: open login page: %w", err)
	}
	defer probe.Close()

	return e.waitAndCapture(ctx, probe, url)
}

// EscalateWithSession first replays an existing session. If a success
// indicator is already present after navigation, the session is still
// valid and no re-login happens; otherwise the flow falls through to the
// same interactive polling as Escalate.
func (e *Escalator) EscalateWithSession(ctx context.Context, url string, existing *SessionRecord) (*EscalateResult, error) {
	probe, err := e.openPage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("auth: open login page: %w", err)
	}
	defer probe.Close()

	if existing != nil && len(existing.StorageState) > 0 {
		if err := probe.RestoreState(ctx, existing.StorageState); err != nil {
			e.logger.Warn("auth: session restore failed, falling back to interactive login",
				"domain", existing.Metadata.Domain, "error", err)
		} else if ok, _ := probe.HasAny(ctx, e.cfg.SuccessSelectors); ok {
			e.logger.Info("auth: stored session still valid", "domain", existing.Metadata.Domain)
			return &EscalateResult{Success: true, Domain: existing.Metadata.Domain}, nil
		}
	}

	return e.waitAndCapture(ctx, probe, url)
}

// waitAndCapture polls the page until a success indicator appears,
// whether that happens on a post-login redirect or in place.
func (e *Escalator) waitAndCapture(ctx context.Context, probe LoginProbe, url string) (*EscalateResult, error) {
	domain := hostOf(url)
	deadline := time.NewTimer(e.cfg.Timeout)
	defer deadline.Stop()
	tick := time.NewTicker(e.cfg.PollInterval)
	defer tick.Stop()

	e.logger.Info("auth: waiting for interactive login",
		"domain", domain, "timeout", e.cfg.Timeout)

	for {
		select {
		case <-ctx.Done():
			return &EscalateResult{Success: false, Domain: domain,
				Error: fmt.Sprintf("login cancelled: %v", ctx.Err())}, nil
		case <-deadline.C:
			return &EscalateResult{Success: false, Domain: domain,
				Error: fmt.Sprintf("login timeout after %s", e.cfg.Timeout)}, nil
		case <-tick.C:
			current, err := probe.CurrentURL(ctx)
			if err != nil {
				// a closed window surfaces as a probe error
				return &EscalateResult{Success: false, Domain: domain,
					Error: fmt.Sprintf("login page closed: %v", err)}, nil
			}

			hasIndicator, err := probe.HasAny(ctx, e.cfg.SuccessSelectors)
			if err != nil || !hasIndicator {
				continue
			}

			e.logger.Debug("auth: success indicator found",
				"domain", domain, "left_login_page", !matchesLoginPath(current, e.cfg.LoginPathPatterns))
			return e.capture(ctx, probe, domain)
		}
	}
}

func (e *Escalator) capture(ctx context.Context, probe LoginProbe, domain string) (*EscalateResult, error) {
	state, err := probe.CaptureState(ctx)
	if err != nil {
		return &EscalateResult{Success: false, Domain: domain,
			Error: fmt.Sprintf("session capture failed: %v", err)}, nil
	}
	if err := e.vault.Save(domain, state); err != nil {
		return &EscalateResult{Success: false, Domain: domain,
			Error: fmt.Sprintf("session save failed: %v", err)}, nil
	}

	e.logger.Info("auth: session captured", "domain", domain)
	return &EscalateResult{Success: true, Domain: domain}, nil
}
