package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"sunny/internal/config"
	"sunny/internal/logging"
	"sunny/internal/services"
	"sunny/internal/sessions"
	"sunny/internal/stage"
	"sunny/internal/summarize"
)

// Stage is the delivering stage handler.
type Stage struct {
	store  *sessions.Store
	cfg    *config.Config
	logger *slog.Logger
	mailer Mailer
}

// NewStage constructs the delivering stage handler with the SMTP mailer.
func NewStage(cfg *config.Config, store *sessions.Store, logger *slog.Logger) *Stage {
	return NewStageWithMailer(cfg, store, logger, NewSMTPMailer(cfg))
}

// NewStageWithMailer allows injecting the mailer (used in tests).
func NewStageWithMailer(cfg *config.Config, store *sessions.Store, logger *slog.Logger, mailer Mailer) *Stage {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "delivery-stage"))
	}
	return &Stage{store: store, cfg: cfg, logger: stageLogger, mailer: mailer}
}

func (s *Stage) Prepare(ctx context.Context, session *sessions.Session) error {
	session.ProgressMessage = "Preparing delivery"
	if session.ReportFile == "" {
		return services.Wrap(services.KindInvalidInput, "deliver", "no report on session", nil)
	}
	recipient := strings.TrimSpace(session.RecipientEmail)
	if recipient == "" {
		return services.Wrap(services.KindInvalidRecipient, "deliver", "no recipient on session", nil)
	}
	if _, err := mail.ParseAddress(recipient); err != nil {
		return services.Wrap(services.KindInvalidRecipient, "deliver",
			fmt.Sprintf("recipient %q is not a valid address", recipient), err)
	}
	return nil
}

func (s *Stage) Execute(ctx context.Context, session *sessions.Session) error {
	logger := logging.WithContext(ctx, s.logger)

	msg := Message{
		To:             session.RecipientEmail,
		Subject:        fmt.Sprintf("Meeting report: session %d", session.ID),
		Body:           buildBody(session),
		AttachmentPath: session.ReportFile,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.KindDeliveryTransient, "deliver", "send report email", err)
	}

	session.ProgressMessage = "Report delivered"
	logger.Info("report delivered", logging.String("recipient", session.RecipientEmail))
	return nil
}

// buildBody writes a short follow-up email around the attached report.
func buildBody(session *sessions.Session) string {
	var b strings.Builder
	b.WriteString("Hi,\n\nYour meeting report is attached.\n")

	if summary, err := summarize.Decode(session.SummaryJSON); err == nil {
		if summary.ExecutiveSummary != "" {
			b.WriteString("\nSummary:\n")
			b.WriteString(summary.ExecutiveSummary)
			b.WriteString("\n")
		}
		if len(summary.ActionItems) > 0 {
			b.WriteString("\nAction items:\n")
			for _, item := range summary.ActionItems {
				fmt.Fprintf(&b, "  - %s\n", item)
			}
		}
	}

	b.WriteString("\n-- \nSunny\n")
	return b.String()
}

// HealthCheck verifies mailer configuration.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	const name = "delivery"
	if s.mailer == nil {
		return stage.Unhealthy(name, "mailer unavailable")
	}
	if err := s.mailer.Configured(); err != nil {
		return stage.Unhealthy(name, err.Error())
	}
	return stage.Healthy(name)
}
