package workflow

import (
	"context"

	"sunny/internal/logging"
	"sunny/internal/sessions"
	"sunny/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running        bool
	ActiveSessions int
	MeetingSlots   int
	SlotsInUse     int
	LastError      string
	LastSession    *sessions.Session
	SessionStats   map[sessions.Status]int
	StageHealth    map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastSession := m.lastSession
	active := len(m.active)
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil && m.logger != nil {
		m.logger.Warn("failed to read session stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(m.stages)+2)
	if m.joiner != nil {
		health["joiner"] = m.joiner.HealthCheck(ctx)
	}
	if m.recorder != nil {
		health["recorder"] = m.recorder.HealthCheck(ctx)
	}
	for _, stg := range m.stages {
		if stg.handler == nil {
			continue
		}
		health[stg.name] = stg.handler.HealthCheck(ctx)
	}

	summary := StatusSummary{
		Running:        running,
		ActiveSessions: active,
		MeetingSlots:   cap(m.slots),
		SlotsInUse:     len(m.slots),
		SessionStats:   stats,
		StageHealth:    health,
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastSession != nil {
		copied := *lastSession
		summary.LastSession = &copied
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastSession(session *sessions.Session) {
	m.mu.Lock()
	if session != nil {
		copied := *session
		m.lastSession = &copied
	} else {
		m.lastSession = nil
	}
	m.mu.Unlock()
}
