package analysis

import (
	"context"
	"fmt"

	"sunny/internal/llm"
)

// llmAnalyzer is the shared shape of the model-backed analyzers: one prompt,
// one JSON payload decoded into the analyzer's data type.
type llmAnalyzer struct {
	name         string
	systemPrompt string
	provider     llm.Provider
	decode       func(content string) (any, error)
}

func (a *llmAnalyzer) Name() string { return a.name }

func (a *llmAnalyzer) Analyze(ctx context.Context, input Input) (any, error) {
	text := input.Transcript.Text()
	if text == "" {
		return nil, ErrSkip
	}
	if a.provider == nil {
		return nil, fmt.Errorf("%s: no provider configured", a.name)
	}
	content, err := a.provider.CompleteJSON(ctx, a.systemPrompt, text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.name, err)
	}
	data, err := a.decode(content)
	if err != nil {
		return nil, fmt.Errorf("%s: parse payload: %w", a.name, err)
	}
	return data, nil
}

// SentimentData is the sentiment analyzer payload.
type SentimentData struct {
	Overall    string  `json:"overall"`
	Score      float64 `json:"score"`
	Highlights []struct {
		Quote     string `json:"quote"`
		Sentiment string `json:"sentiment"`
	} `json:"highlights"`
}

// NewSentiment builds the model-backed sentiment analyzer.
func NewSentiment(provider llm.Provider) Analyzer {
	return &llmAnalyzer{
		name:     "sentiment",
		provider: provider,
		systemPrompt: `You analyze the tone of a meeting transcript. Respond with JSON only:
{"overall": "positive|neutral|negative|mixed", "score": -1.0, "highlights": [{"quote": "...", "sentiment": "..."}]}
score ranges from -1 (hostile) to 1 (enthusiastic). Include at most five highlights.`,
		decode: func(content string) (any, error) {
			var data SentimentData
			if err := llm.DecodeJSON(content, &data); err != nil {
				return nil, err
			}
			return data, nil
		},
	}
}

// TopicsData is the topics analyzer payload.
type TopicsData struct {
	Topics []struct {
		Label   string  `json:"label"`
		Weight  float64 `json:"weight"`
		Summary string  `json:"summary"`
	} `json:"topics"`
}

// NewTopics builds the model-backed topic extraction analyzer.
func NewTopics(provider llm.Provider) Analyzer {
	return &llmAnalyzer{
		name:     "topics",
		provider: provider,
		systemPrompt: `You extract discussion topics from a meeting transcript. Respond with JSON only:
{"topics": [{"label": "...", "weight": 0.0, "summary": "..."}]}
weight is the approximate share of the meeting spent on the topic; weights sum to 1. Include at most eight topics, most significant first.`,
		decode: func(content string) (any, error) {
			var data TopicsData
			if err := llm.DecodeJSON(content, &data); err != nil {
				return nil, err
			}
			return data, nil
		},
	}
}

// ActionItemsData is the action-items analyzer payload.
type ActionItemsData struct {
	Items []struct {
		Description string `json:"description"`
		Owner       string `json:"owner,omitempty"`
		Due         string `json:"due,omitempty"`
	} `json:"items"`
}

// NewActionItems builds the model-backed action-item extraction analyzer.
func NewActionItems(provider llm.Provider) Analyzer {
	return &llmAnalyzer{
		name:     "action_items",
		provider: provider,
		systemPrompt: `You extract action items from a meeting transcript. Respond with JSON only:
{"items": [{"description": "...", "owner": "...", "due": "..."}]}
Only include commitments actually made in the meeting. Leave owner or due empty when not stated; never invent them.`,
		decode: func(content string) (any, error) {
			var data ActionItemsData
			if err := llm.DecodeJSON(content, &data); err != nil {
				return nil, err
			}
			return data, nil
		},
	}
}
