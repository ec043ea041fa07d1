package analysis

import (
	"context"
	"errors"

	"sunny/internal/config"
	"sunny/internal/llm"
	"sunny/internal/sessions"
	"sunny/internal/transcription"
)

// ErrSkip signals an analyzer declined to run for this transcript. The
// fan-out records a skipped result instead of a failure.
var ErrSkip = errors.New("analyzer skipped")

// Skip returns an ErrSkip whose reason surfaces as the result detail.
func Skip(reason string) error { return &skipError{reason: reason} }

type skipError struct{ reason string }

func (e *skipError) Error() string { return e.reason }
func (e *skipError) Unwrap() error { return ErrSkip }

// Input carries everything an analyzer may need.
type Input struct {
	Session    *sessions.Session
	Transcript transcription.Transcript
}

// Analyzer produces one facet of transcript analysis. The returned value is
// marshalled into the result's data payload.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, input Input) (any, error)
}

// NewRegistry resolves the full analyzer set from configuration, once at
// startup. Capabilities switched off in config are bound to a stub that
// records skipped:unavailable, so every report carries one entry per
// analyzer. The order here fixes the order of results in the report.
func NewRegistry(cfg *config.Config, store *sessions.Store, provider llm.Provider) []Analyzer {
	bind := func(enabled bool, name string, build func() Analyzer) Analyzer {
		if enabled {
			return build()
		}
		return unavailable{name: name}
	}
	return []Analyzer{
		bind(cfg.Analysis.Diarization, "diarization", func() Analyzer { return NewDiarization() }),
		bind(cfg.Analysis.Sentiment, "sentiment", func() Analyzer { return NewSentiment(provider) }),
		bind(cfg.Analysis.Topics, "topics", func() Analyzer { return NewTopics(provider) }),
		bind(cfg.Analysis.ActionItems, "action_items", func() Analyzer { return NewActionItems(provider) }),
		bind(cfg.Analysis.Analytics, "analytics", func() Analyzer { return NewAnalytics() }),
		bind(cfg.Analysis.Memory, "memory", func() Analyzer {
			return NewMemory(store, cfg.Summarize.ChunkWords, cfg.Summarize.OverlapWords)
		}),
	}
}

// unavailable stands in for a capability disabled in configuration.
type unavailable struct{ name string }

func (u unavailable) Name() string { return u.name }

func (u unavailable) Analyze(context.Context, Input) (any, error) {
	return nil, Skip("unavailable")
}
