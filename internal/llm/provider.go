package llm

import "context"

// Provider issues a JSON-only chat completion with system and user prompts.
type Provider interface {
	Name() string
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}
