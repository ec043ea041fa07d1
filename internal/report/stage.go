package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"sunny/internal/config"
	"sunny/internal/logging"
	"sunny/internal/services"
	"sunny/internal/sessions"
	"sunny/internal/stage"
	"sunny/internal/summarize"
)

// Stage is the reporting stage handler.
type Stage struct {
	store    *sessions.Store
	cfg      *config.Config
	logger   *slog.Logger
	renderer Renderer
}

// NewStage constructs the reporting stage handler with the docx renderer.
func NewStage(cfg *config.Config, store *sessions.Store, logger *slog.Logger) *Stage {
	return NewStageWithRenderer(cfg, store, logger, NewDocxRenderer())
}

// NewStageWithRenderer allows injecting the renderer (used in tests).
func NewStageWithRenderer(cfg *config.Config, store *sessions.Store, logger *slog.Logger, renderer Renderer) *Stage {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "report-stage"))
	}
	return &Stage{store: store, cfg: cfg, logger: stageLogger, renderer: renderer}
}

func (s *Stage) Prepare(ctx context.Context, session *sessions.Session) error {
	session.ProgressMessage = "Preparing report"
	if session.SummaryJSON == "" {
		return services.Wrap(services.KindInvalidInput, "report", "no summary on session", nil)
	}
	return nil
}

func (s *Stage) Execute(ctx context.Context, session *sessions.Session) error {
	logger := logging.WithContext(ctx, s.logger)

	summary, err := summarize.Decode(session.SummaryJSON)
	if err != nil {
		return services.Wrap(services.KindInvalidInput, "report", "summary unreadable", err)
	}

	doc := Build(session, summary)
	outputPath := filepath.Join(s.cfg.Paths.ReportDir,
		fmt.Sprintf("session_%d%s", session.ID, s.renderer.Extension()))

	if err := s.renderer.Render(doc, outputPath); err != nil {
		return services.Wrap(services.KindRenderError, "report", "render report document", err)
	}

	session.ReportFile = outputPath
	session.ProgressMessage = "Report ready"
	logger.Info("report rendered",
		logging.String("report_file", outputPath),
		logging.Int("sections", len(doc.Sections)))
	return nil
}

// HealthCheck verifies the report directory is writable.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	const name = "report"
	if s.renderer == nil {
		return stage.Unhealthy(name, "renderer unavailable")
	}
	if err := os.MkdirAll(s.cfg.Paths.ReportDir, 0o755); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("report directory: %v", err))
	}
	return stage.Healthy(name)
}
