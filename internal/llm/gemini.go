package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Gemini calls the Gemini API through the official SDK. The SDK manages its
// own transport, so the provider only carries credentials and model choice.
type Gemini struct {
	apiKey string
	model  string
}

// NewGemini constructs a Gemini provider.
func NewGemini(cfg Config) *Gemini {
	return &Gemini{
		apiKey: strings.TrimSpace(cfg.APIKey),
		model:  strings.TrimSpace(cfg.Model),
	}
}

// Name identifies the provider in logs and health output.
func (g *Gemini) Name() string { return "gemini" }

// CompleteJSON prompts the model and returns its raw text, which callers
// decode as JSON.
func (g *Gemini) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if g.apiKey == "" {
		return "", errors.New("gemini: api key required")
	}
	if strings.TrimSpace(userPrompt) == "" {
		return "", errors.New("gemini: user prompt required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("gemini: create client: %w", err)
	}

	prompt := strings.TrimSpace(systemPrompt) + "\n\n" + strings.TrimSpace(userPrompt)
	result, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("gemini: empty response")
	}
	return text.String(), nil
}

// HealthCheck verifies credentials are present. A live round trip is left to
// the first real request to avoid burning quota at startup.
func (g *Gemini) HealthCheck(context.Context) error {
	if g.apiKey == "" {
		return errors.New("gemini: api key required")
	}
	if g.model == "" {
		return errors.New("gemini: model required")
	}
	return nil
}
