package summarize

import (
	"context"
	"fmt"
	"log/slog"

	"sunny/internal/config"
	"sunny/internal/logging"
	"sunny/internal/services"
	"sunny/internal/sessions"
	"sunny/internal/stage"
	"sunny/internal/transcription"
)

// Stage is the summarizing stage handler.
type Stage struct {
	store      *sessions.Store
	cfg        *config.Config
	logger     *slog.Logger
	summarizer *Summarizer
}

// NewStage constructs the summarizing stage handler.
func NewStage(cfg *config.Config, store *sessions.Store, logger *slog.Logger, summarizer *Summarizer) *Stage {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "summarize-stage"))
	}
	return &Stage{store: store, cfg: cfg, logger: stageLogger, summarizer: summarizer}
}

func (s *Stage) Prepare(ctx context.Context, session *sessions.Session) error {
	session.ProgressMessage = "Preparing summarization"
	if session.TranscriptJSON == "" {
		return services.Wrap(services.KindInvalidInput, "summarize", "no transcript on session", nil)
	}
	return nil
}

func (s *Stage) Execute(ctx context.Context, session *sessions.Session) error {
	logger := logging.WithContext(ctx, s.logger)

	transcript, err := transcription.Decode(session.TranscriptJSON)
	if err != nil {
		return services.Wrap(services.KindInvalidInput, "summarize", "transcript unreadable", err)
	}

	summary, err := s.summarizer.Summarize(ctx, transcript.Text())
	if err != nil {
		return err
	}

	encoded, err := summary.Encode()
	if err != nil {
		return services.Wrap(services.KindUnknown, "summarize", "persist summary", err)
	}
	session.SummaryJSON = encoded
	session.ProgressMessage = fmt.Sprintf("Summary ready (%d key points)", len(summary.KeyPoints))
	logger.Info("summarization complete",
		logging.Int("key_points", len(summary.KeyPoints)),
		logging.Int("action_items", len(summary.ActionItems)),
		logging.Float64("confidence", summary.Confidence))
	return nil
}

// HealthCheck verifies the provider credentials are usable.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	const name = "summarizer"
	if s.summarizer == nil || s.summarizer.Provider() == nil {
		return stage.Unhealthy(name, "provider unavailable")
	}
	if err := s.summarizer.Provider().HealthCheck(ctx); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
