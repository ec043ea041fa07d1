package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Session describes a session record in a transport-friendly format.
type Session struct {
	ID             int64           `json:"id"`
	MeetingURL     string          `json:"meetingUrl,omitempty"`
	Platform       string          `json:"platform"`
	Status         string          `json:"status"`
	RecipientEmail string          `json:"recipientEmail,omitempty"`
	SendEmail      bool            `json:"sendEmail"`
	Progress       SessionProgress `json:"progress"`
	ErrorKind      string          `json:"errorKind,omitempty"`
	ErrorStage     string          `json:"errorStage,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	RetryCount     int             `json:"retryCount,omitempty"`
	CancelPending  bool            `json:"cancelPending,omitempty"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
	AudioFile      string          `json:"audioFile,omitempty"`
	ReportFile     string          `json:"reportFile,omitempty"`
	History        []Transition    `json:"history,omitempty"`
	Summary        json.RawMessage `json:"summary,omitempty"`
}

// SessionProgress captures stage progress information for a session.
type SessionProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

// Transition is one entry of the session's status audit trail.
type Transition struct {
	Status string `json:"status"`
	At     string `json:"at"`
}

// CreateSessionRequest is the payload for enqueueing a new meeting session.
type CreateSessionRequest struct {
	MeetingURL     string `json:"meetingUrl"`
	RecipientEmail string `json:"recipientEmail,omitempty"`
	SendEmail      bool   `json:"sendEmail"`
}

// SessionListResponse wraps a collection of sessions.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// SessionResponse wraps a single session.
type SessionResponse struct {
	Session Session `json:"session"`
}

// SummaryResponse carries the stored summary and analysis artifacts.
type SummaryResponse struct {
	SessionID int64           `json:"sessionId"`
	Summary   json.RawMessage `json:"summary,omitempty"`
	Analysis  json.RawMessage `json:"analysis,omitempty"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running        bool           `json:"running"`
	ActiveSessions int            `json:"activeSessions"`
	MeetingSlots   int            `json:"meetingSlots"`
	SlotsInUse     int            `json:"slotsInUse"`
	SessionStats   map[string]int `json:"sessionStats"`
	LastError      string         `json:"lastError,omitempty"`
	LastSession    *Session       `json:"lastSession,omitempty"`
	StageHealth    []StageHealth  `json:"stageHealth"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	SessionDBPath string         `json:"sessionDbPath"`
	LockFilePath  string         `json:"lockFilePath"`
	Workflow      WorkflowStatus `json:"workflow"`
}

// MemoryMatch is one keyword hit against the meeting memory index.
type MemoryMatch struct {
	SessionID  int64  `json:"sessionId"`
	ChunkIndex int    `json:"chunkIndex"`
	Content    string `json:"content"`
	Keywords   string `json:"keywords,omitempty"`
}

// MemorySearchResponse wraps memory search results.
type MemorySearchResponse struct {
	Query   string        `json:"query"`
	Matches []MemoryMatch `json:"matches"`
}

// NotifyTestResponse reports the outcome of a notification probe.
type NotifyTestResponse struct {
	Sent   bool   `json:"sent"`
	Detail string `json:"detail,omitempty"`
}
