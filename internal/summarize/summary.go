package summarize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MeetingSummary is the structured output of the summarizing stage.
type MeetingSummary struct {
	ExecutiveSummary string   `json:"executive_summary"`
	KeyPoints        []string `json:"key_points"`
	Decisions        []string `json:"decisions"`
	ActionItems      []string `json:"action_items"`
	Confidence       float64  `json:"confidence"`
}

// Normalize trims fields and clamps confidence into [0, 1].
func (s *MeetingSummary) Normalize() {
	s.ExecutiveSummary = strings.TrimSpace(s.ExecutiveSummary)
	s.KeyPoints = trimAll(s.KeyPoints)
	s.Decisions = trimAll(s.Decisions)
	s.ActionItems = trimAll(s.ActionItems)
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 1 {
		s.Confidence = 1
	}
}

// Encode serializes the summary for session storage.
func (s MeetingSummary) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	return string(data), nil
}

// Decode restores a summary from its session storage form.
func Decode(raw string) (MeetingSummary, error) {
	var s MeetingSummary
	if strings.TrimSpace(raw) == "" {
		return s, fmt.Errorf("decode summary: empty payload")
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return s, fmt.Errorf("decode summary: %w", err)
	}
	return s, nil
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
