package mapper

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type geminiProvider struct {
	client *genai.Client
	model  string
}

func newGeminiProvider(ctx context.Context, cfg ProviderConfig) (*geminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("mapper: gemini requires an API key")
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("mapper: gemini client: %w", err)
	}
	return &geminiProvider{client: client, model: model}, nil
}

func (g *geminiProvider) Name() string { return "gemini" }

// GenerateStructured asks Gemini for JSON constrained by the page
// structure schema. Low temperature keeps selector output stable across
// retries.
func (g *geminiProvider) GenerateStructured(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(userPrompt),
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: systemPrompt}},
			},
			ResponseMIMEType: "application/json",
			ResponseSchema:   pageStructureSchema(),
			Temperature:      genai.Ptr[float32](0.2),
		})
	if err != nil {
		return "", fmt.Errorf("mapper: gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("mapper: gemini returned no content")
	}
	return text, nil
}
