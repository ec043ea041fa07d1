package transcription

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Segment is one contiguous span of transcribed speech.
type Segment struct {
	Speaker string  `json:"speaker,omitempty"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Transcript is the full output of the transcribing stage.
type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// Text joins segment text into a single transcript string.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// WordCount counts whitespace-delimited words across all segments.
func (t Transcript) WordCount() int {
	count := 0
	for _, seg := range t.Segments {
		count += len(strings.Fields(seg.Text))
	}
	return count
}

// Duration reports the end timestamp of the final segment in seconds.
func (t Transcript) Duration() float64 {
	if len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

// Encode serializes the transcript for session storage.
func (t Transcript) Encode() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}
	return string(data), nil
}

// Decode restores a transcript from its session storage form.
func Decode(raw string) (Transcript, error) {
	var t Transcript
	if strings.TrimSpace(raw) == "" {
		return t, fmt.Errorf("decode transcript: empty payload")
	}
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return t, fmt.Errorf("decode transcript: %w", err)
	}
	return t, nil
}
