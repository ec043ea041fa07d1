package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sunny/internal/analysis"
	"sunny/internal/sessions"
	"sunny/internal/summarize"
)

// Section is one titled block of the report.
type Section struct {
	Heading    string
	Paragraphs []string
	Bullets    []string
}

// Document is the renderer-independent report model.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
}

// Build assembles the document from the session artifacts. A missing or
// partial analysis report reduces the document rather than failing it.
func Build(session *sessions.Session, summary summarize.MeetingSummary) Document {
	doc := Document{
		Title:    "Meeting Report",
		Subtitle: buildSubtitle(session),
	}

	doc.Sections = append(doc.Sections, Section{
		Heading:    "Executive Summary",
		Paragraphs: []string{summary.ExecutiveSummary},
	})
	if len(summary.KeyPoints) > 0 {
		doc.Sections = append(doc.Sections, Section{Heading: "Key Points", Bullets: summary.KeyPoints})
	}
	if len(summary.Decisions) > 0 {
		doc.Sections = append(doc.Sections, Section{Heading: "Decisions", Bullets: summary.Decisions})
	}
	if len(summary.ActionItems) > 0 {
		doc.Sections = append(doc.Sections, Section{Heading: "Action Items", Bullets: summary.ActionItems})
	}

	if session.AnalysisJSON != "" {
		if analysisReport, err := analysis.DecodeReport(session.AnalysisJSON); err == nil {
			doc.Sections = append(doc.Sections, analysisSections(analysisReport)...)
		}
	}

	doc.Sections = append(doc.Sections, Section{
		Heading:    "Confidence",
		Paragraphs: []string{fmt.Sprintf("Summary confidence: %.0f%%", summary.Confidence*100)},
	})
	return doc
}

func buildSubtitle(session *sessions.Session) string {
	parts := []string{fmt.Sprintf("Session %d", session.ID)}
	if session.Platform != "" {
		parts = append(parts, platformLabel(session.Platform))
	}
	if !session.CreatedAt.IsZero() {
		parts = append(parts, session.CreatedAt.Format(time.DateOnly))
	}
	return strings.Join(parts, " · ")
}

func platformLabel(platform sessions.Platform) string {
	switch platform {
	case sessions.PlatformZoom:
		return "Zoom"
	case sessions.PlatformGoogleMeet:
		return "Google Meet"
	case sessions.PlatformUpload:
		return "Uploaded recording"
	default:
		return string(platform)
	}
}

func analysisSections(analysisReport analysis.Report) []Section {
	var sections []Section

	if result, ok := analysisReport.ResultFor("topics"); ok && result.Status == analysis.ResultOK {
		var data analysis.TopicsData
		if decodeData(result, &data) && len(data.Topics) > 0 {
			section := Section{Heading: "Topics"}
			for _, topic := range data.Topics {
				bullet := topic.Label
				if topic.Summary != "" {
					bullet += ": " + topic.Summary
				}
				section.Bullets = append(section.Bullets, bullet)
			}
			sections = append(sections, section)
		}
	}

	if result, ok := analysisReport.ResultFor("sentiment"); ok && result.Status == analysis.ResultOK {
		var data analysis.SentimentData
		if decodeData(result, &data) && data.Overall != "" {
			sections = append(sections, Section{
				Heading:    "Tone",
				Paragraphs: []string{fmt.Sprintf("Overall tone: %s (score %.2f)", data.Overall, data.Score)},
			})
		}
	}

	if result, ok := analysisReport.ResultFor("analytics"); ok && result.Status == analysis.ResultOK {
		var data analysis.AnalyticsData
		if decodeData(result, &data) {
			sections = append(sections, Section{
				Heading: "Meeting Analytics",
				Bullets: []string{
					fmt.Sprintf("Duration: %s", formatSeconds(data.DurationSeconds)),
					fmt.Sprintf("Speaking time: %s", formatSeconds(data.SpeechSeconds)),
					fmt.Sprintf("Words spoken: %d (%.0f per minute)", data.WordCount, data.WordsPerMinute),
				},
			})
		}
	}

	if result, ok := analysisReport.ResultFor("diarization"); ok && result.Status == analysis.ResultOK {
		var data analysis.DiarizationData
		if decodeData(result, &data) && len(data.Speakers) > 0 {
			sections = append(sections, Section{
				Heading:    "Speakers",
				Paragraphs: []string{fmt.Sprintf("%d speakers detected (%s)", len(data.Speakers), data.Method)},
			})
		}
	}

	return sections
}

func decodeData(result analysis.Result, target any) bool {
	if len(result.Data) == 0 {
		return false
	}
	return json.Unmarshal(result.Data, target) == nil
}

func formatSeconds(seconds float64) string {
	duration := time.Duration(seconds * float64(time.Second))
	duration = duration.Round(time.Second)
	if duration >= time.Hour {
		return fmt.Sprintf("%dh %dm", int(duration.Hours()), int(duration.Minutes())%60)
	}
	return fmt.Sprintf("%dm %ds", int(duration.Minutes()), int(duration.Seconds())%60)
}
