package auth

import (
	"context"
	"errors"
	"testing"
)

// fakeProbe matches a fixed set of selectors and counts calls.
type fakeProbe struct {
	matching map[string]bool
	failing  map[string]bool
	calls    []string
}

func (f *fakeProbe) Has(_ context.Context, selector string) (bool, error) {
	f.calls = append(f.calls, selector)
	if f.failing[selector] {
		return false, errors.New("probe failed")
	}
	return f.matching[selector], nil
}

func TestDetectStatusSignals(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	ctx := context.Background()

	tests := []struct {
		name       string
		status     int
		confidence float64
		required   bool
	}{
		{"401 alone crosses threshold", 401, 0.9, true},
		{"403 alone crosses threshold", 403, 0.8, true},
		{"200 contributes nothing", 200, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(ctx, nil, "https://example.com/docs", "https://example.com/docs", tt.status)
			if got.Confidence != tt.confidence {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.confidence)
			}
			if got.Required != tt.required {
				t.Errorf("required = %v, want %v", got.Required, tt.required)
			}
		})
	}
}

func TestDetectURLSignals(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	ctx := context.Background()

	// Redirect to a login path.
	got := d.Detect(ctx, nil, "https://example.com/docs", "https://example.com/login?next=/docs", 200)
	if got.Confidence != 0.7 || !got.Required {
		t.Errorf("login path redirect: confidence = %v, required = %v", got.Confidence, got.Required)
	}

	// Cross-domain redirect alone stays under threshold.
	got = d.Detect(ctx, nil, "https://example.com/docs", "https://sso.partner.com/start", 200)
	if got.Confidence != 0.5 || got.Required {
		t.Errorf("cross domain: confidence = %v, required = %v", got.Confidence, got.Required)
	}

	// Both URL signals stack: login path on a different domain.
	got = d.Detect(ctx, nil, "https://example.com/docs", "https://sso.partner.com/oauth/authorize", 200)
	if got.Confidence != 1.0 {
		t.Errorf("stacked url signals: confidence = %v, want 1.0 (0.7+0.5 clamped)", got.Confidence)
	}
}

// WHAT: each DOM category contributes at most once; the first matching
// selector short-circuits further probing in that category.
func TestDetectDOMShortCircuit(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	probe := &fakeProbe{matching: map[string]bool{
		DefaultLoginFormSelectors[0]: true,
		DefaultLoginFormSelectors[1]: true, // never reached
	}}

	got := d.Detect(context.Background(), probe, "https://example.com", "https://example.com", 200)
	if got.Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6 (single login-form contribution)", got.Confidence)
	}

	// The first login-form selector matched, so the second must not have
	// been probed; auth-wall selectors are a separate category and all run.
	for _, call := range probe.calls {
		if call == DefaultLoginFormSelectors[1] {
			t.Error("second login-form selector probed after first matched")
		}
	}
}

func TestDetectProbeErrorsTolerated(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	probe := &fakeProbe{
		failing:  map[string]bool{DefaultLoginFormSelectors[0]: true},
		matching: map[string]bool{DefaultLoginFormSelectors[1]: true},
	}

	got := d.Detect(context.Background(), probe, "https://example.com", "https://example.com", 200)
	if got.Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6 (error skipped, next selector matched)", got.Confidence)
	}
}

// WHAT: adding a true signal never decreases confidence, and the result is
// clamped to [0,1].
func TestDetectMonotonicityAndClamp(t *testing.T) {
	d := NewDetector(DetectorConfig{})
	ctx := context.Background()

	base := d.Detect(ctx, nil, "https://example.com/docs", "https://example.com/docs", 401)

	withForm := d.Detect(ctx,
		&fakeProbe{matching: map[string]bool{DefaultLoginFormSelectors[0]: true}},
		"https://example.com/docs", "https://example.com/docs", 401)

	if withForm.Confidence < base.Confidence {
		t.Errorf("adding a signal decreased confidence: %v -> %v", base.Confidence, withForm.Confidence)
	}
	if withForm.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamp at 1.0 (0.9+0.6)", withForm.Confidence)
	}

	// Every signal firing at once still clamps.
	all := d.Detect(ctx,
		&fakeProbe{matching: map[string]bool{
			DefaultLoginFormSelectors[0]: true,
			DefaultAuthWallSelectors[0]:  true,
		}},
		"https://example.com/docs", "https://sso.partner.com/login", 401)
	if all.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", all.Confidence)
	}
	if len(all.Signals) != 5 {
		t.Errorf("signals = %v, want all 5 recorded", all.Signals)
	}
}

func TestMatchesLoginPath(t *testing.T) {
	patterns := DefaultLoginPathPatterns
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/login", true},
		{"https://example.com/signin?next=/", true},
		{"https://example.com/oauth/authorize", true},
		{"https://example.com/sso/start", true},
		{"https://example.com/docs", false},
		{"https://login.example.com/", false}, // host is not the path
	}
	for _, tt := range tests {
		if got := matchesLoginPath(tt.url, patterns); got != tt.want {
			t.Errorf("matchesLoginPath(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
