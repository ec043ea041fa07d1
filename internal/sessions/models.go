package sessions

import (
	"encoding/json"
	"strings"
	"time"

	"sunny/internal/services"
)

// Status represents the lifecycle of a session.
type Status string

const (
	StatusCreated      Status = "created"
	StatusJoining      Status = "joining"
	StatusRecording    Status = "recording"
	StatusTranscribing Status = "transcribing"
	StatusAnalyzing    Status = "analyzing"
	StatusSummarizing  Status = "summarizing"
	StatusReporting    Status = "reporting"
	StatusDelivering   Status = "delivering"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// Platform identifies the meeting platform a session targets.
type Platform string

const (
	PlatformZoom       Platform = "zoom"
	PlatformGoogleMeet Platform = "google_meet"
	// PlatformUpload marks sessions created from manually ingested recordings.
	PlatformUpload Platform = "upload"
)

// pipelineOrder is the forward path through the state machine. Delivering is
// skipped when the session does not request email delivery.
var pipelineOrder = []Status{
	StatusCreated,
	StatusJoining,
	StatusRecording,
	StatusTranscribing,
	StatusAnalyzing,
	StatusSummarizing,
	StatusReporting,
	StatusDelivering,
	StatusCompleted,
}

var statusIndex = func() map[Status]int {
	m := make(map[Status]int, len(pipelineOrder))
	for i, s := range pipelineOrder {
		m[s] = i
	}
	return m
}()

// AllStatuses returns every known status, pipeline order first.
func AllStatuses() []Status {
	out := make([]Status, 0, len(pipelineOrder)+2)
	out = append(out, pipelineOrder...)
	out = append(out, StatusFailed, StatusCancelled)
	return out
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, s := range AllStatuses() {
		if s == normalized {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether a status ends the pipeline.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsProcessing reports whether a status reflects an in-flight stage.
func IsProcessing(s Status) bool {
	switch s {
	case StatusJoining, StatusRecording, StatusTranscribing, StatusAnalyzing,
		StatusSummarizing, StatusReporting, StatusDelivering:
		return true
	default:
		return false
	}
}

// ValidTransition reports whether moving from one status to another follows
// the declared transition graph. Failed and Cancelled are reachable from any
// non-terminal status; Completed is reachable from Delivering always and from
// Reporting when delivery is skipped.
func ValidTransition(from, to Status, sendEmail bool) bool {
	if IsTerminal(from) {
		return false
	}
	if to == StatusFailed || to == StatusCancelled {
		return true
	}
	fromIdx, ok := statusIndex[from]
	if !ok {
		return false
	}
	toIdx, ok := statusIndex[to]
	if !ok {
		return false
	}
	if toIdx == fromIdx+1 {
		// Delivering is not a legal successor when no email was requested.
		return sendEmail || to != StatusDelivering
	}
	// Reporting jumps straight to Completed when delivery is skipped.
	return !sendEmail && from == StatusReporting && to == StatusCompleted
}

// Progress maps a status to a monotonic 0-100 indicator derived from stage
// order. Terminal failure states keep the caller-supplied last value, so only
// forward statuses are mapped here.
func Progress(s Status) float64 {
	idx, ok := statusIndex[s]
	if !ok {
		if s == StatusCompleted {
			return 100
		}
		return 0
	}
	last := len(pipelineOrder) - 1
	return float64(idx) / float64(last) * 100
}

// Transition is one audit-trail entry recorded at each status change.
type Transition struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

// HealthSummary describes aggregated session counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Created    int
	Processing int
	Completed  int
	Failed     int
	Cancelled  int
}

// Session represents one meeting-processing job persisted in SQLite.
type Session struct {
	ID             int64
	MeetingURL     string
	Platform       Platform
	RecipientEmail string
	SendEmail      bool
	Status         Status

	CreatedAt        time.Time
	UpdatedAt        time.Time
	StageHistoryJSON string

	// Artifact references, each written once by its producing stage.
	AudioFile      string
	TranscriptJSON string
	AnalysisJSON   string
	SummaryJSON    string
	ReportFile     string

	ErrorKind    string
	ErrorStage   string
	ErrorMessage string
	RetryCount   int

	CancelRequested bool

	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
}

// RecordTransition appends a status change to the audit trail and updates the
// progress projection. It does not persist; callers commit via Store.Update.
func (s *Session) RecordTransition(to Status, at time.Time) {
	s.Status = to
	s.RetryCount = 0
	s.appendHistory(to, at)
	if pct := Progress(to); pct > s.ProgressPercent {
		s.ProgressPercent = pct
	}
	s.ProgressStage = StageLabel(to)
	s.ProgressMessage = ""
}

func (s *Session) appendHistory(to Status, at time.Time) {
	history := append(s.History(), Transition{Status: to, At: at.UTC()})
	if encoded, err := json.Marshal(history); err == nil {
		s.StageHistoryJSON = string(encoded)
	}
}

// History decodes the audit trail; a corrupt trail yields an empty slice.
func (s *Session) History() []Transition {
	if strings.TrimSpace(s.StageHistoryJSON) == "" {
		return nil
	}
	var history []Transition
	if err := json.Unmarshal([]byte(s.StageHistoryJSON), &history); err != nil {
		return nil
	}
	return history
}

// SetFailed marks the session failed with its error classification. The
// terminal step lands in the audit trail like any other transition.
func (s *Session) SetFailed(details services.Details) {
	s.Status = StatusFailed
	s.ErrorKind = string(details.Kind)
	s.ErrorStage = details.Stage
	s.ErrorMessage = details.Message
	s.appendHistory(StatusFailed, time.Now())
	s.ProgressStage = StageLabel(StatusFailed)
	s.ProgressMessage = details.Message
}

// SetCancelled marks the session cancelled. Cancelled sessions expose no error.
func (s *Session) SetCancelled() {
	s.Status = StatusCancelled
	s.ErrorKind = ""
	s.ErrorStage = ""
	s.ErrorMessage = ""
	s.appendHistory(StatusCancelled, time.Now())
	s.ProgressStage = StageLabel(StatusCancelled)
	s.ProgressMessage = ""
}

// StageLabel returns the user-facing label for a status.
func StageLabel(s Status) string {
	if s == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(s), "_", " "))
	for i, part := range parts {
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
