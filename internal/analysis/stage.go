package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sunny/internal/config"
	"sunny/internal/logging"
	"sunny/internal/services"
	"sunny/internal/sessions"
	"sunny/internal/stage"
	"sunny/internal/transcription"
)

// Stage is the analyzing stage handler. It fails only when there is nothing
// to analyze; individual analyzer failures are recorded in the report.
type Stage struct {
	store     *sessions.Store
	cfg       *config.Config
	logger    *slog.Logger
	analyzers []Analyzer
}

// NewStage constructs the analyzing stage handler over a resolved analyzer
// set.
func NewStage(cfg *config.Config, store *sessions.Store, logger *slog.Logger, analyzers []Analyzer) *Stage {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "analysis-stage"))
	}
	return &Stage{store: store, cfg: cfg, logger: stageLogger, analyzers: analyzers}
}

func (s *Stage) Prepare(ctx context.Context, session *sessions.Session) error {
	session.ProgressMessage = "Preparing analysis"
	if session.TranscriptJSON == "" {
		return services.Wrap(services.KindInvalidInput, "analyze", "no transcript on session", nil)
	}
	return nil
}

func (s *Stage) Execute(ctx context.Context, session *sessions.Session) error {
	logger := logging.WithContext(ctx, s.logger)

	transcript, err := transcription.Decode(session.TranscriptJSON)
	if err != nil {
		return services.Wrap(services.KindInvalidInput, "analyze", "transcript unreadable", err)
	}
	if len(transcript.Segments) == 0 {
		return services.Wrap(services.KindInvalidInput, "analyze", "transcript has no segments", nil)
	}

	fanoutCtx := ctx
	if s.cfg.Analysis.FanoutTimeout > 0 {
		var cancel context.CancelFunc
		fanoutCtx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.Analysis.FanoutTimeout)*time.Second)
		defer cancel()
	}

	perAnalyzer := time.Duration(s.cfg.Analysis.AnalyzerTimeout) * time.Second
	input := Input{Session: session, Transcript: transcript}
	report := Report{Results: runAnalyzers(fanoutCtx, s.analyzers, input, perAnalyzer)}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	encoded, err := report.Encode()
	if err != nil {
		return services.Wrap(services.KindUnknown, "analyze", "persist analysis report", err)
	}
	session.AnalysisJSON = encoded
	session.ProgressMessage = fmt.Sprintf("Analysis done (%d/%d analyzers)", report.Succeeded(), len(report.Results))

	for _, result := range report.Results {
		if result.Status != ResultOK {
			logger.Warn("analyzer did not complete",
				logging.String("analyzer", result.Analyzer),
				logging.String("status", string(result.Status)),
				logging.String("detail", result.Detail))
		}
	}
	logger.Info("analysis complete",
		logging.Int("analyzers", len(report.Results)),
		logging.Int("succeeded", report.Succeeded()))
	return nil
}

// HealthCheck reports the resolved analyzer set.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	const name = "analysis"
	if len(s.analyzers) == 0 {
		return stage.Unhealthy(name, "no analyzers enabled")
	}
	return stage.Healthy(name)
}
