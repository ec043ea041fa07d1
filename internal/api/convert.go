package api

import (
	"encoding/json"
	"sort"

	"sunny/internal/sessions"
	"sunny/internal/stage"
	"sunny/internal/workflow"
)

// FromSession converts a session record to its API representation.
func FromSession(session *sessions.Session) Session {
	if session == nil {
		return Session{}
	}

	dto := Session{
		ID:             session.ID,
		MeetingURL:     session.MeetingURL,
		Platform:       string(session.Platform),
		Status:         string(session.Status),
		RecipientEmail: session.RecipientEmail,
		SendEmail:      session.SendEmail,
		Progress: SessionProgress{
			Stage:   session.ProgressStage,
			Percent: session.ProgressPercent,
			Message: session.ProgressMessage,
		},
		ErrorKind:     session.ErrorKind,
		ErrorStage:    session.ErrorStage,
		ErrorMessage:  session.ErrorMessage,
		RetryCount:    session.RetryCount,
		CancelPending: session.CancelRequested && !sessions.IsTerminal(session.Status),
		AudioFile:     session.AudioFile,
		ReportFile:    session.ReportFile,
	}
	if !session.CreatedAt.IsZero() {
		dto.CreatedAt = session.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !session.UpdatedAt.IsZero() {
		dto.UpdatedAt = session.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	for _, transition := range session.History() {
		dto.History = append(dto.History, Transition{
			Status: string(transition.Status),
			At:     transition.At.UTC().Format(dateTimeFormat),
		})
	}
	if raw := session.SummaryJSON; raw != "" {
		dto.Summary = json.RawMessage(raw)
	}
	return dto
}

// FromSessions converts a slice of session records into API DTOs.
func FromSessions(records []*sessions.Session) []Session {
	if len(records) == 0 {
		return nil
	}
	out := make([]Session, 0, len(records))
	for _, record := range records {
		out = append(out, FromSession(record))
	}
	return out
}

// FromStatusSummary converts workflow diagnostics into the API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	status := WorkflowStatus{
		Running:        summary.Running,
		ActiveSessions: summary.ActiveSessions,
		MeetingSlots:   summary.MeetingSlots,
		SlotsInUse:     summary.SlotsInUse,
		SessionStats:   MergeSessionStats(summary.SessionStats),
		LastError:      summary.LastError,
		StageHealth:    convertStageHealth(summary.StageHealth),
	}
	if summary.LastSession != nil {
		last := FromSession(summary.LastSession)
		status.LastSession = &last
	}
	return status
}

func convertStageHealth(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	out := make([]StageHealth, 0, len(health))
	for _, entry := range health {
		out = append(out, StageHealth{Name: entry.Name, Ready: entry.Ready, Detail: entry.Detail})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MergeSessionStats normalizes session counts so every status appears in the
// payload even when its count is zero.
func MergeSessionStats(stats map[sessions.Status]int) map[string]int {
	merged := make(map[string]int, len(sessions.AllStatuses()))
	for _, status := range sessions.AllStatuses() {
		merged[string(status)] = 0
	}
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}

// FromMemoryChunks converts memory search hits into API DTOs.
func FromMemoryChunks(chunks []sessions.MemoryChunk) []MemoryMatch {
	if len(chunks) == 0 {
		return nil
	}
	out := make([]MemoryMatch, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, MemoryMatch{
			SessionID:  chunk.SessionID,
			ChunkIndex: chunk.Index,
			Content:    chunk.Content,
			Keywords:   chunk.Keywords,
		})
	}
	return out
}
