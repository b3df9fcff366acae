// Package mapper turns page snapshots into validated element maps using a
// schema-constrained generative model.
package mapper

import (
	"context"
	"fmt"
)

// ProviderKind selects a generation backend. The set is closed: backends
// are chosen at construction time, never by runtime string dispatch at
// call sites.
type ProviderKind string

const (
	ProviderGemini ProviderKind = "gemini"
	ProviderOllama ProviderKind = "ollama"
)

// ProviderConfig selects and configures a generation backend.
type ProviderConfig struct {
	Kind ProviderKind `json:"kind" yaml:"kind"`

	// APIKey authenticates against hosted backends. Required for gemini.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the backend model name. Defaults are per-backend.
	Model string `json:"model" yaml:"model"`

	// Endpoint is the base URL for self-hosted backends (ollama).
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// GenerativeProvider is one generation backend. Implementations must
// return raw JSON text conforming to the page structure schema; the
// mapper validates it regardless, since schema enforcement differs in
// strength across backends.
type GenerativeProvider interface {
	// Name identifies the backend for logging.
	Name() string
	// GenerateStructured runs one schema-constrained generation call.
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// NewProvider constructs the backend named by cfg.Kind.
func NewProvider(ctx context.Context, cfg ProviderConfig) (GenerativeProvider, error) {
	switch cfg.Kind {
	case ProviderGemini, "":
		return newGeminiProvider(ctx, cfg)
	case ProviderOllama:
		return newOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("mapper: unknown provider kind %q", cfg.Kind)
	}
}
