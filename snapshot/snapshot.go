// Package snapshot converts a live page into a bounded, serializable
// capture: sanitized HTML truncated to a fixed budget plus a compact
// structure digest. Snapshots are ephemeral, produced per navigation and
// consumed once by discovery.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
)

// MaxHTMLChars caps the HTML sent to any model prompt, bounding token cost.
const MaxHTMLChars = 15_000

// ErrPageNotReady is returned when a capture is attempted before the page
// has finished loading its document.
var ErrPageNotReady = errors.New("snapshot: page not ready")

// PageSnapshot is the bounded capture handed to discovery.
type PageSnapshot struct {
	HTML             string `json:"html"`
	StructureSummary string `json:"structure_summary"`
}

// Capture reads the rendered document from page, sanitizes it, and builds
// the structure digest. It never mutates the page.
func Capture(ctx context.Context, page *rod.Page) (*PageSnapshot, error) {
	ready, err := page.Context(ctx).Eval(`() => document.readyState`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: readiness check: %w", err)
	}
	if ready.Value.Str() == "loading" {
		return nil, ErrPageNotReady
	}

	res, err := page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read document: %w", err)
	}
	raw := res.Value.Str()
	if raw == "" {
		return nil, ErrPageNotReady
	}

	return FromHTML(raw)
}

// FromHTML builds a snapshot from raw HTML. Split out from Capture so the
// sanitation and digest pipeline is testable without a browser.
func FromHTML(raw string) (*PageSnapshot, error) {
	summary, err := Digest(raw)
	if err != nil {
		return nil, err
	}
	return &PageSnapshot{
		HTML:             Truncate(Clean(raw), MaxHTMLChars),
		StructureSummary: summary,
	}, nil
}

// Truncate caps s at max characters.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
