package analysis

import (
	"context"
	"fmt"
)

// speaker turn detection threshold in seconds
const turnGapSeconds = 1.5

// Diarization assigns heuristic speaker labels from pause structure: a gap
// longer than the turn threshold starts a new speaker turn, alternating
// between two labels. It is a coarse stand-in for acoustic diarization and
// honest about that in its output.
type Diarization struct{}

// NewDiarization constructs the diarization analyzer.
func NewDiarization() *Diarization { return &Diarization{} }

func (*Diarization) Name() string { return "diarization" }

// DiarizationData is the diarization analyzer payload. SegmentSpeakers
// annotates the transcript positionally, one speaker per segment, leaving
// the transcript artifact itself untouched.
type DiarizationData struct {
	Method          string   `json:"method"`
	Speakers        []string `json:"speakers"`
	Turns           []Turn   `json:"turns"`
	SegmentSpeakers []string `json:"segment_speakers"`
}

// Turn is a run of consecutive segments attributed to one speaker.
type Turn struct {
	Speaker      string  `json:"speaker"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	SegmentCount int     `json:"segment_count"`
}

func (*Diarization) Analyze(_ context.Context, input Input) (any, error) {
	segments := input.Transcript.Segments
	if len(segments) == 0 {
		return nil, ErrSkip
	}

	data := DiarizationData{
		Method:          "pause_heuristic",
		SegmentSpeakers: make([]string, 0, len(segments)),
	}
	speakerIdx := 0
	current := Turn{Speaker: speakerLabel(0), Start: segments[0].Start, End: segments[0].End, SegmentCount: 1}
	data.SegmentSpeakers = append(data.SegmentSpeakers, current.Speaker)

	for i := 1; i < len(segments); i++ {
		seg := segments[i]
		if seg.Start-current.End > turnGapSeconds {
			data.Turns = append(data.Turns, current)
			speakerIdx = (speakerIdx + 1) % 2
			current = Turn{Speaker: speakerLabel(speakerIdx), Start: seg.Start, SegmentCount: 0}
		}
		current.End = seg.End
		current.SegmentCount++
		data.SegmentSpeakers = append(data.SegmentSpeakers, current.Speaker)
	}
	data.Turns = append(data.Turns, current)

	seen := map[string]bool{}
	for _, turn := range data.Turns {
		if !seen[turn.Speaker] {
			seen[turn.Speaker] = true
			data.Speakers = append(data.Speakers, turn.Speaker)
		}
	}
	return data, nil
}

func speakerLabel(idx int) string {
	return fmt.Sprintf("Speaker %d", idx+1)
}
