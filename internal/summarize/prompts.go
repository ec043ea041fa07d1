package summarize

import (
	"fmt"
	"strings"
)

const summarySystemPrompt = `You are a meeting summarization assistant. You receive a meeting transcript and respond with JSON only, using exactly this shape:
{"executive_summary": "...", "key_points": ["..."], "decisions": ["..."], "action_items": ["..."], "confidence": 0.0}
executive_summary is two to four sentences. key_points lists the main discussion threads. decisions lists concrete decisions that were made. action_items lists follow-ups with an owner when one was named. confidence is your 0-1 estimate of how faithfully the summary reflects the transcript.`

const chunkSystemPrompt = `You are a meeting summarization assistant. You receive one part of a longer meeting transcript and respond with JSON only, using exactly this shape:
{"executive_summary": "...", "key_points": ["..."], "decisions": ["..."], "action_items": ["..."], "confidence": 0.0}
Summarize only what this part contains. Do not speculate about the rest of the meeting.`

const mergeSystemPrompt = `You are a meeting summarization assistant. You receive partial summaries of consecutive parts of one meeting, in order. Merge them into a single summary of the whole meeting and respond with JSON only, using exactly this shape:
{"executive_summary": "...", "key_points": ["..."], "decisions": ["..."], "action_items": ["..."], "confidence": 0.0}
Deduplicate points that appear in multiple parts. Keep decisions and action items from every part.`

func chunkUserPrompt(index, total int, chunk string) string {
	return fmt.Sprintf("[Part %d of %d]\n\n%s", index+1, total, chunk)
}

func mergeUserPrompt(partials []MeetingSummary) string {
	var b strings.Builder
	for i, partial := range partials {
		encoded, err := partial.Encode()
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "[Part %d]\n%s\n\n", i+1, encoded)
	}
	return strings.TrimSpace(b.String())
}
