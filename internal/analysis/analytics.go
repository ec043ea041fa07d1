package analysis

import (
	"context"
	"math"
	"strings"
)

// Analytics computes plain talk-time statistics from segment timing. It
// needs no external service and never fails on a non-empty transcript.
type Analytics struct{}

// NewAnalytics constructs the analytics analyzer.
func NewAnalytics() *Analytics { return &Analytics{} }

func (*Analytics) Name() string { return "analytics" }

// AnalyticsData is the analytics analyzer payload.
type AnalyticsData struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SpeechSeconds   float64 `json:"speech_seconds"`
	SilenceSeconds  float64 `json:"silence_seconds"`
	WordCount       int     `json:"word_count"`
	WordsPerMinute  float64 `json:"words_per_minute"`
	SegmentCount    int     `json:"segment_count"`
	AvgSegmentWords float64 `json:"avg_segment_words"`
}

func (*Analytics) Analyze(_ context.Context, input Input) (any, error) {
	segments := input.Transcript.Segments
	if len(segments) == 0 {
		return nil, ErrSkip
	}

	data := AnalyticsData{
		DurationSeconds: input.Transcript.Duration(),
		SegmentCount:    len(segments),
	}
	for _, seg := range segments {
		data.SpeechSeconds += seg.End - seg.Start
		data.WordCount += len(strings.Fields(seg.Text))
	}
	data.SilenceSeconds = data.DurationSeconds - data.SpeechSeconds
	if data.SilenceSeconds < 0 {
		data.SilenceSeconds = 0
	}
	if data.SpeechSeconds > 0 {
		data.WordsPerMinute = round1(float64(data.WordCount) / (data.SpeechSeconds / 60))
	}
	data.AvgSegmentWords = round1(float64(data.WordCount) / float64(data.SegmentCount))
	data.SpeechSeconds = round1(data.SpeechSeconds)
	data.SilenceSeconds = round1(data.SilenceSeconds)
	return data, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
