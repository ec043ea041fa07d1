package workflow

import (
	"context"
	"errors"

	"sunny/internal/logging"
	"sunny/internal/sessions"
)

func (m *Manager) notifyStarted(ctx context.Context, session *sessions.Session) {
	m.notify(ctx, "start", m.notifier.NotifySessionStarted, session)
}

func (m *Manager) notifyRecording(ctx context.Context, session *sessions.Session) {
	m.notify(ctx, "recording", m.notifier.NotifyRecordingStarted, session)
}

func (m *Manager) notifyCompleted(ctx context.Context, session *sessions.Session) {
	m.notify(ctx, "completion", m.notifier.NotifySessionCompleted, session)
}

func (m *Manager) notifyCancelled(ctx context.Context, session *sessions.Session) {
	m.notify(ctx, "cancellation", m.notifier.NotifySessionCancelled, session)
}

func (m *Manager) notifyFailed(ctx context.Context, session *sessions.Session) {
	m.notify(ctx, "failure", m.notifier.NotifySessionFailed, session)
}

func (m *Manager) notify(ctx context.Context, label string, send func(context.Context, *sessions.Session) error, session *sessions.Session) {
	if m.notifier == nil {
		return
	}
	if err := send(ctx, session); err != nil {
		if m.logger == nil {
			return
		}
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, notification not sent", logging.String("event", label))
			return
		}
		m.logger.Debug("notification failed", logging.String("event", label), logging.Error(err))
	}
}
