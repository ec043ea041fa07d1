package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sunny/internal/logging"
	"sunny/internal/meeting"
	"sunny/internal/services"
	"sunny/internal/sessions"
)

func (m *Manager) runSession(ctx context.Context, session *sessions.Session, release func()) {
	defer m.wg.Done()
	defer m.markIdle(session.ID)

	// The slot is held from admission until the bot has left the call, and
	// must be returned exactly once on every exit path.
	var releaseOnce sync.Once
	releaseSlot := func() { releaseOnce.Do(release) }
	defer releaseSlot()

	sessionCtx, cancelSession := context.WithCancel(ctx)
	defer cancelSession()
	sessionCtx = services.WithSessionID(sessionCtx, session.ID)
	sessionCtx = services.WithRequestID(sessionCtx, uuid.NewString())

	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.WithContext(sessionCtx, base.With(logging.String(logging.FieldComponent, "session-runner")))

	watchDone := make(chan struct{})
	go m.watchCancel(sessionCtx, session.ID, cancelSession, watchDone)
	defer func() {
		cancelSession()
		<-watchDone
	}()

	if session.Status == sessions.StatusCreated {
		if !m.runLivePhase(ctx, sessionCtx, logger, session, releaseSlot) {
			return
		}
	}
	releaseSlot()

	m.runPipeline(ctx, sessionCtx, logger, session)
}

// watchCancel polls the out-of-band cancel flag and tears down the session
// context when a cancel lands, which interrupts whatever stage is running.
func (m *Manager) watchCancel(ctx context.Context, id int64, cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			requested, err := m.store.CancelRequested(ctx, id)
			if err == nil && requested {
				cancel()
				return
			}
		}
	}
}

// runLivePhase joins the meeting and records it. It reports whether the
// session reached transcribing and the pipeline should continue.
func (m *Manager) runLivePhase(parent, ctx context.Context, logger *slog.Logger, session *sessions.Session, releaseSlot func()) bool {
	session.RecordTransition(sessions.StatusJoining, time.Now())
	if err := m.store.Update(ctx, session); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist joining transition", logging.Error(err))
		return false
	}
	m.setLastSession(session)
	m.notifyStarted(ctx, session)

	handle, err := m.joinWithRetry(ctx, logger, session)
	if err != nil {
		m.resolveStageError(parent, ctx, logger, session, err)
		return false
	}

	session.RecordTransition(sessions.StatusRecording, time.Now())
	if err := m.store.Update(ctx, session); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist recording transition", logging.Error(err))
		m.leaveMeeting(logger, handle)
		return false
	}
	m.setLastSession(session)
	m.notifyRecording(ctx, session)

	recordErr := m.recorder.Record(ctx, session, handle)
	m.leaveMeeting(logger, handle)
	releaseSlot()

	if recordErr != nil {
		m.resolveStageError(parent, ctx, logger, session, recordErr)
		return false
	}

	session.RecordTransition(sessions.StatusTranscribing, time.Now())
	if err := m.store.Update(ctx, session); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist recording result", logging.Error(err))
		return false
	}
	m.setLastSession(session)
	return true
}

func (m *Manager) joinWithRetry(ctx context.Context, logger *slog.Logger, session *sessions.Session) (meeting.Handle, error) {
	attempts := m.cfg.Workflow.JoinMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var handle meeting.Handle
	var err error
	for attempt := 1; ; attempt++ {
		handle, err = m.joiner.Join(ctx, session)
		if err == nil {
			session.RetryCount = 0
			return handle, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !services.Retryable(err) || attempt >= attempts {
			return nil, err
		}
		session.RetryCount = attempt
		if uerr := m.store.Update(ctx, session); uerr != nil {
			logger.Warn("failed to persist retry count", logging.Error(uerr))
		}
		delay := m.retryDelay(attempt)
		logger.Warn("join failed, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err))
		m.sleep(ctx, delay)
	}
}

// leaveMeeting detaches the bot on a short deadline independent of the
// session context, which may already be cancelled.
func (m *Manager) leaveMeeting(logger *slog.Logger, handle meeting.Handle) {
	if handle == nil {
		return
	}
	leaveCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := m.joiner.Leave(leaveCtx, handle); err != nil {
		logger.Warn("failed to leave meeting cleanly", logging.Error(err))
	}
}

func (m *Manager) runPipeline(parent, ctx context.Context, logger *slog.Logger, session *sessions.Session) {
	for {
		if ctx.Err() != nil {
			m.resolveStageError(parent, ctx, logger, session, ctx.Err())
			return
		}

		stg, ok := m.stageForStatus(session.Status)
		if !ok {
			return
		}

		if err := m.runStage(ctx, logger, stg, session); err != nil {
			m.resolveStageError(parent, ctx, logger, session, err)
			return
		}

		// Stage success commits the transition and the stage artifacts in
		// a single update.
		next := stg.next(session)
		session.RecordTransition(next, time.Now())
		if err := m.store.Update(ctx, session); err != nil {
			m.setLastError(err)
			logger.Error("failed to persist stage result", logging.Error(err))
			return
		}
		m.setLastSession(session)

		if next == sessions.StatusCompleted {
			logger.Info("session completed",
				logging.String(logging.FieldEventType, "session_complete"),
				logging.String("report_file", session.ReportFile))
			m.notifyCompleted(ctx, session)
			return
		}
	}
}

func (m *Manager) runStage(ctx context.Context, logger *slog.Logger, stg pipelineStage, session *sessions.Session) error {
	stageCtx := services.WithStage(ctx, stg.name)
	stageLogger := logging.WithContext(stageCtx, logger)

	attempts := stg.maxAttempts(m)
	if attempts < 1 {
		attempts = 1
	}

	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("status", string(session.Status)))

	var err error
	for attempt := 1; ; attempt++ {
		err = stg.handler.Prepare(stageCtx, session)
		if err == nil {
			if uerr := m.store.Update(stageCtx, session); uerr != nil {
				return uerr
			}
			err = stg.handler.Execute(stageCtx, session)
		}
		if err == nil {
			break
		}
		if stageCtx.Err() != nil {
			return stageCtx.Err()
		}
		if !services.Retryable(err) || attempt >= attempts {
			return err
		}
		session.RetryCount = attempt
		if uerr := m.store.Update(stageCtx, session); uerr != nil {
			stageLogger.Warn("failed to persist retry count", logging.Error(uerr))
		}
		delay := m.retryDelay(attempt)
		stageLogger.Warn("stage failed, retrying",
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err))
		m.sleep(stageCtx, delay)
	}

	session.RetryCount = 0
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(stageStart)))
	return nil
}

func (m *Manager) retryDelay(attempt int) time.Duration {
	base := time.Duration(m.cfg.Workflow.RetryBackoffSeconds) * time.Second
	if base <= 0 {
		base = time.Second
	}
	delay := base << (attempt - 1)
	if limit := 5 * time.Minute; delay > limit {
		delay = limit
	}
	return delay
}
