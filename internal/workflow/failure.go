package workflow

import (
	"context"
	"log/slog"
	"time"

	"sunny/internal/logging"
	"sunny/internal/services"
	"sunny/internal/sessions"
)

// resolveStageError maps a stage error onto the session's terminal state.
// Daemon shutdown leaves the session in its processing status so the restart
// sweep can mark it interrupted; a requested cancel becomes cancelled unless
// the recording came back empty; every other error becomes a classified
// failure.
func (m *Manager) resolveStageError(parent, ctx context.Context, logger *slog.Logger, session *sessions.Session, stageErr error) {
	if parent.Err() != nil {
		logger.Debug("shutdown interrupted session", logging.Error(stageErr))
		return
	}
	if ctx.Err() != nil {
		if services.IsKind(stageErr, services.KindEmptyRecording) {
			// cancel arrived before any usable audio existed; the recording
			// failed as empty rather than cancelling cleanly
			persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			m.failSession(persistCtx, logger, session, stageErr)
			return
		}
		m.finishCancelled(logger, session)
		return
	}
	m.failSession(ctx, logger, session, stageErr)
}

func (m *Manager) failSession(ctx context.Context, logger *slog.Logger, session *sessions.Session, stageErr error) {
	details := services.FailureDetails(stageErr)
	if details.Stage == "" {
		details.Stage = string(session.Status)
	}
	session.SetFailed(details)

	logger.Error("session failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldStage, details.Stage),
		logging.String("error_message", details.Message),
		logging.Error(stageErr))

	if err := m.store.Update(ctx, session); err != nil {
		logger.Error("failed to persist session failure", logging.Error(err))
		m.setLastError(err)
	}
	m.setLastError(stageErr)
	m.setLastSession(session)
	m.notifyFailed(ctx, session)
}

// finishCancelled persists the cancelled state on a fresh context because the
// session context is already torn down.
func (m *Manager) finishCancelled(logger *slog.Logger, session *sessions.Session) {
	session.SetCancelled()

	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.store.Update(persistCtx, session); err != nil {
		logger.Error("failed to persist session cancellation", logging.Error(err))
		m.setLastError(err)
		return
	}
	logger.Info("session cancelled", logging.String(logging.FieldEventType, "session_cancelled"))
	m.setLastSession(session)
	m.notifyCancelled(persistCtx, session)
}
