package workflow

import (
	"context"
	"errors"
	"log/slog"

	"sunny/internal/logging"
	"sunny/internal/sessions"
)

// Start begins background dispatching.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.dispatch(runCtx)
	return nil
}

// Stop terminates dispatching, interrupts in-flight sessions, and waits for
// every runner to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// dispatch admits sessions oldest-first. Newly created sessions wait for a
// meeting slot before a runner is started; ingested recordings enter the
// pipeline at transcribing and never occupy a slot.
func (m *Manager) dispatch(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldComponent, "workflow-manager"))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		session, err := m.nextClaimable(ctx)
		if err != nil {
			m.setLastError(err)
			logger.Error("failed to fetch next session", logging.Error(err))
			m.sleep(ctx, m.errRetry)
			continue
		}
		if session == nil {
			m.sleep(ctx, m.pollInterval)
			continue
		}

		cancelRequested, err := m.store.CancelRequested(ctx, session.ID)
		if err != nil {
			m.setLastError(err)
			m.sleep(ctx, m.errRetry)
			continue
		}
		if cancelRequested {
			m.cancelBeforeStart(ctx, logger, session)
			continue
		}

		release := func() {}
		if session.Status == sessions.StatusCreated {
			select {
			case m.slots <- struct{}{}:
			case <-ctx.Done():
				return
			}
			release = func() { <-m.slots }

			// The slot wait can be long; a cancel may have landed meanwhile.
			if cancelled, err := m.store.CancelRequested(ctx, session.ID); err == nil && cancelled {
				release()
				m.cancelBeforeStart(ctx, logger, session)
				continue
			}
		}

		m.markActive(session.ID)
		m.wg.Add(1)
		go m.runSession(ctx, session, release)
	}
}

// nextClaimable returns the oldest session awaiting a runner, skipping
// sessions a runner already owns.
func (m *Manager) nextClaimable(ctx context.Context) (*sessions.Session, error) {
	candidates, err := m.store.List(ctx, sessions.StatusCreated, sessions.StatusTranscribing)
	if err != nil {
		return nil, err
	}
	for _, session := range candidates {
		if !m.isActive(session.ID) {
			return session, nil
		}
	}
	return nil, nil
}

func (m *Manager) cancelBeforeStart(ctx context.Context, logger *slog.Logger, session *sessions.Session) {
	session.SetCancelled()
	if err := m.store.Update(ctx, session); err != nil {
		logger.Warn("failed to persist queued cancellation", logging.Error(err))
		m.setLastError(err)
		return
	}
	m.setLastSession(session)
	m.notifyCancelled(ctx, session)
}
