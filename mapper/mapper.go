package mapper

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/marrow/registry"
	"github.com/hazyhaar/marrow/snapshot"
)

// Mapper runs schema-constrained discovery against a generation backend.
type Mapper struct {
	provider GenerativeProvider
	logger   *slog.Logger
}

// New creates a Mapper over the given provider.
func New(provider GenerativeProvider, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{provider: provider, logger: logger}
}

// Analyze turns a snapshot into a validated PageStructure. A response that
// fails JSON parsing or schema validation surfaces as InvalidResponseError
// carrying the raw output; it is never coerced into a partial map.
func (m *Mapper) Analyze(ctx context.Context, url string, snap *snapshot.PageSnapshot) (*registry.PageStructure, error) {
	n, err := registry.Normalize(url)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := m.provider.GenerateStructured(ctx, systemInstruction, buildPrompt(url, snap))
	if err != nil {
		return nil, err
	}

	out, err := parseAndValidate(raw)
	if err != nil {
		m.logger.Warn("mapper: discovery response rejected",
			"url", n.URL, "provider", m.provider.Name(), "error", err)
		return nil, err
	}

	m.logger.Info("mapper: page mapped",
		"url", n.URL, "provider", m.provider.Name(),
		"page_type", out.PageType, "elements", len(out.Elements),
		"took", time.Since(start).Round(time.Millisecond))

	return &registry.PageStructure{
		Domain:   n.Domain,
		URL:      n.URL,
		PageType: out.PageType,
		Elements: out.Elements,
	}, nil
}
