package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sunny/internal/config"
	"sunny/internal/llm"
	"sunny/internal/logging"
	"sunny/internal/services"
)

// Summarizer produces meeting summaries through a chat-completion provider.
type Summarizer struct {
	cfg      *config.Config
	logger   *slog.Logger
	provider llm.Provider
}

// NewProvider selects the configured provider implementation.
func NewProvider(cfg *config.Config) (llm.Provider, error) {
	providerCfg := llm.Config{
		APIKey:         cfg.Summarize.APIKey,
		BaseURL:        cfg.Summarize.BaseURL,
		Model:          cfg.Summarize.Model,
		TimeoutSeconds: cfg.Summarize.TimeoutSeconds,
	}
	switch cfg.Summarize.Provider {
	case "openrouter":
		return llm.NewOpenRouter(providerCfg), nil
	case "gemini":
		return llm.NewGemini(providerCfg), nil
	default:
		return nil, fmt.Errorf("unknown summarize provider %q", cfg.Summarize.Provider)
	}
}

// NewSummarizer constructs a summarizer around a provider.
func NewSummarizer(cfg *config.Config, logger *slog.Logger, provider llm.Provider) *Summarizer {
	componentLogger := logger
	if componentLogger != nil {
		componentLogger = componentLogger.With(logging.String(logging.FieldComponent, "summarizer"))
	}
	return &Summarizer{cfg: cfg, logger: componentLogger, provider: provider}
}

// Provider exposes the underlying provider for health checks.
func (s *Summarizer) Provider() llm.Provider {
	return s.provider
}

// Summarize produces a structured summary of the transcript text. Long
// transcripts follow the chunk-then-merge path.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (MeetingSummary, error) {
	logger := logging.WithContext(ctx, s.logger)

	words := len(strings.Fields(transcript))
	if words == 0 {
		return MeetingSummary{}, services.Wrap(services.KindInvalidInput, "summarize", "transcript is empty", nil)
	}

	chunkSize := s.cfg.Summarize.ChunkWords
	if words <= chunkSize {
		return s.complete(ctx, summarySystemPrompt, transcript)
	}

	chunks := ChunkWords(transcript, chunkSize, s.cfg.Summarize.OverlapWords)
	logger.Info("summarizing in chunks",
		logging.Int("words", words),
		logging.Int("chunks", len(chunks)))

	partials := make([]MeetingSummary, 0, len(chunks))
	for i, chunk := range chunks {
		partial, err := s.complete(ctx, chunkSystemPrompt, chunkUserPrompt(i, len(chunks), chunk))
		if err != nil {
			return MeetingSummary{}, err
		}
		partials = append(partials, partial)
	}

	return s.completeAs(ctx, mergeSystemPrompt, mergeUserPrompt(partials), services.KindChunkMerge)
}

func (s *Summarizer) complete(ctx context.Context, systemPrompt, userPrompt string) (MeetingSummary, error) {
	return s.completeAs(ctx, systemPrompt, userPrompt, services.KindProviderTransient)
}

// completeAs issues one provider call. Provider failures keep their transient
// or quota classification; a payload the decoder cannot make sense of takes
// decodeKind, so a broken merge surfaces as chunk_merge.
func (s *Summarizer) completeAs(ctx context.Context, systemPrompt, userPrompt string, decodeKind services.Kind) (MeetingSummary, error) {
	content, err := s.provider.CompleteJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		if ctx.Err() != nil {
			return MeetingSummary{}, ctx.Err()
		}
		if isQuotaError(err) {
			return MeetingSummary{}, services.Wrap(services.KindQuotaExceeded, "summarize", "provider quota exhausted", err)
		}
		return MeetingSummary{}, services.Wrap(services.KindProviderTransient, "summarize", "provider request failed", err)
	}

	var summary MeetingSummary
	if err := llm.DecodeJSON(content, &summary); err != nil {
		return MeetingSummary{}, services.Wrap(decodeKind, "summarize", "parse provider payload", err)
	}
	summary.Normalize()
	return summary, nil
}

func isQuotaError(err error) bool {
	message := err.Error()
	return strings.Contains(message, "quota") ||
		strings.Contains(message, "RESOURCE_EXHAUSTED") ||
		strings.Contains(message, "insufficient credits")
}
