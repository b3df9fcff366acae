package mapper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultOllamaEndpoint = "http://localhost:11434"
	defaultOllamaModel    = "llama3.1"
	ollamaTimeout         = 5 * time.Minute
)

type ollamaProvider struct {
	client *resty.Client
	model  string
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Format  string         `json:"format"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// newOllamaProvider targets a self-hosted Ollama server. Ollama enforces
// only JSON well-formedness, not the full schema; the mapper's validation
// pass carries the rest.
func newOllamaProvider(cfg ProviderConfig) (*ollamaProvider, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}

	client := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(ollamaTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &ollamaProvider{client: client, model: model}, nil
}

func (o *ollamaProvider) Name() string { return "ollama" }

func (o *ollamaProvider) GenerateStructured(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var out ollamaResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(ollamaRequest{
			Model:   o.model,
			System:  systemPrompt,
			Prompt:  userPrompt,
			Format:  "json",
			Stream:  false,
			Options: map[string]any{"temperature": 0.2},
		}).
		SetResult(&out).
		Post("/api/generate")
	if err != nil {
		return "", fmt.Errorf("mapper: ollama generate: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("mapper: ollama status %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Error != "" {
		return "", fmt.Errorf("mapper: ollama: %s", out.Error)
	}
	if out.Response == "" {
		return "", errors.New("mapper: ollama returned no content")
	}
	return out.Response, nil
}
