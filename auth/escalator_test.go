package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// scriptedProbe simulates a login page: the success indicator appears
// after a fixed number of polls.
type scriptedProbe struct {
	indicatorAfter int32 // polls before HasAny reports true; -1 = never
	polls          atomic.Int32
	url            string
	urlErr         error
	captureErr     error
	restored       atomic.Bool
	captured       atomic.Bool
	closed         atomic.Int32
}

func (p *scriptedProbe) CurrentURL(context.Context) (string, error) {
	if p.urlErr != nil {
		return "", p.urlErr
	}
	return p.url, nil
}

func (p *scriptedProbe) HasAny(context.Context, []string) (bool, error) {
	n := p.polls.Add(1)
	if p.indicatorAfter < 0 {
		return false, nil
	}
	return n > p.indicatorAfter, nil
}

func (p *scriptedProbe) CaptureState(context.Context) (json.RawMessage, error) {
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	p.captured.Store(true)
	return json.RawMessage(`{"cookies":[]}`), nil
}

func (p *scriptedProbe) RestoreState(context.Context, json.RawMessage) error {
	p.restored.Store(true)
	return nil
}

func (p *scriptedProbe) Close() { p.closed.Add(1) }

func testEscalator(t *testing.T, probe LoginProbe) (*Escalator, *Vault) {
	t.Helper()
	vault := testVault(t)
	esc := NewEscalator(EscalatorConfig{
		PollInterval: 5 * time.Millisecond,
		Timeout:      250 * time.Millisecond,
	}, vault, func(context.Context, string) (LoginProbe, error) {
		return probe, nil
	}, nil)
	return esc, vault
}

// WHAT: with a success indicator appearing early, escalation returns
// success well under the timeout and persists the session.
func TestEscalateSuccess(t *testing.T) {
	probe := &scriptedProbe{indicatorAfter: 2, url: "https://example.com/dashboard"}
	esc, vault := testEscalator(t, probe)

	start := time.Now()
	res, err := esc.Escalate(context.Background(), "https://example.com/login")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("took %v, expected well under the 250ms budget", elapsed)
	}
	if !vault.Exists("example.com") {
		t.Error("session not persisted on success")
	}
	if probe.closed.Load() != 1 {
		t.Errorf("probe closed %d times, want exactly 1", probe.closed.Load())
	}
}

// WHAT: with no indicator ever appearing, escalation fails at or after the
// budget, never earlier, and persists nothing.
func TestEscalateTimeout(t *testing.T) {
	probe := &scriptedProbe{indicatorAfter: -1, url: "https://example.com/login"}
	esc, vault := testEscalator(t, probe)

	start := time.Now()
	res, err := esc.Escalate(context.Background(), "https://example.com/login")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if res.Success {
		t.Fatal("result success despite no indicator")
	}
	if !strings.Contains(res.Error, "timeout") {
		t.Errorf("error = %q, want timeout diagnostic", res.Error)
	}
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
		t.Errorf("returned after %v, before the 250ms budget", elapsed)
	}
	if vault.Exists("example.com") {
		t.Error("session persisted on failure")
	}
}

func TestEscalatePageClosed(t *testing.T) {
	probe := &scriptedProbe{indicatorAfter: -1, urlErr: errors.New("target closed")}
	esc, vault := testEscalator(t, probe)

	res, err := esc.Escalate(context.Background(), "https://example.com/login")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if res.Success || !strings.Contains(res.Error, "closed") {
		t.Errorf("result = %+v, want closed-page failure", res)
	}
	if vault.Exists("example.com") {
		t.Error("session persisted on failure")
	}
}

// WHAT: capture failure after a successful login leaves no partial state.
func TestEscalateCaptureFailure(t *testing.T) {
	probe := &scriptedProbe{indicatorAfter: 0, url: "https://example.com/home",
		captureErr: errors.New("cdp gone")}
	esc, vault := testEscalator(t, probe)

	res, err := esc.Escalate(context.Background(), "https://example.com/login")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if res.Success {
		t.Fatal("result success despite capture failure")
	}
	if vault.Exists("example.com") {
		t.Error("partial session persisted")
	}
}

// WHAT: a still-valid stored session short-circuits without re-login or
// re-capture.
func TestEscalateWithValidSession(t *testing.T) {
	probe := &scriptedProbe{indicatorAfter: 0, url: "https://example.com/home"}
	esc, _ := testEscalator(t, probe)

	existing := &SessionRecord{
		Metadata:     SessionMetadata{Domain: "example.com"},
		StorageState: json.RawMessage(`{"cookies":[{"name":"sid"}]}`),
	}
	res, err := esc.EscalateWithSession(context.Background(), "https://example.com/app", existing)
	if err != nil {
		t.Fatalf("escalate with session: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if !probe.restored.Load() {
		t.Error("stored session was not restored")
	}
	if probe.captured.Load() {
		t.Error("valid session triggered a re-capture")
	}
}

// WHAT: a stale stored session falls through to the interactive flow.
func TestEscalateWithStaleSession(t *testing.T) {
	// Indicator appears only after the restore check plus two polls.
	probe := &scriptedProbe{indicatorAfter: 3, url: "https://example.com/home"}
	esc, vault := testEscalator(t, probe)

	existing := &SessionRecord{
		Metadata:     SessionMetadata{Domain: "example.com"},
		StorageState: json.RawMessage(`{"cookies":[]}`),
	}
	res, err := esc.EscalateWithSession(context.Background(), "https://example.com/app", existing)
	if err != nil {
		t.Fatalf("escalate with session: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success after fallthrough", res)
	}
	if !probe.captured.Load() {
		t.Error("fallthrough did not capture a fresh session")
	}
	if !vault.Exists("example.com") {
		t.Error("fresh session not persisted")
	}
}

func TestEscalateCancelled(t *testing.T) {
	probe := &scriptedProbe{indicatorAfter: -1, url: "https://example.com/login"}
	esc, _ := testEscalator(t, probe)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := esc.Escalate(ctx, "https://example.com/login")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if res.Success || !strings.Contains(res.Error, "cancelled") {
		t.Errorf("result = %+v, want cancellation failure", res)
	}
}
