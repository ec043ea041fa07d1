package summarize_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"sunny/internal/logging"
	"sunny/internal/services"
	"sunny/internal/sessions"
	"sunny/internal/summarize"
	"sunny/internal/testsupport"
	"sunny/internal/transcription"
)

type scriptedProvider struct {
	responses []string
	err       error
	prompts   []string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.prompts = append(p.prompts, userPrompt)
	if len(p.responses) == 0 {
		return "", errors.New("script exhausted")
	}
	next := p.responses[0]
	p.responses = p.responses[1:]
	return next, nil
}

func (p *scriptedProvider) HealthCheck(context.Context) error { return nil }

func partialJSON(part string) string {
	return fmt.Sprintf(`{"executive_summary":"part %s","key_points":["point %s"],"decisions":[],"action_items":[],"confidence":0.9}`, part, part)
}

func TestSummarizeShortTranscriptSingleCall(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	provider := &scriptedProvider{responses: []string{
		`{"executive_summary":"We planned the launch.","key_points":["launch date"],"decisions":["ship friday"],"action_items":["alex: draft announcement"],"confidence":0.95}`,
	}}
	summarizer := summarize.NewSummarizer(cfg, logging.NewNop(), provider)

	summary, err := summarizer.Summarize(context.Background(), "we talked about the launch")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(provider.prompts) != 1 {
		t.Fatalf("expected one provider call, got %d", len(provider.prompts))
	}
	if summary.ExecutiveSummary != "We planned the launch." {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.ActionItems) != 1 {
		t.Fatalf("expected one action item, got %v", summary.ActionItems)
	}
}

func TestSummarizeLongTranscriptChunksInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Summarize.ChunkWords = 10
	cfg.Summarize.OverlapWords = 2

	words := make([]string, 35)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	transcript := strings.Join(words, " ")

	provider := &scriptedProvider{responses: []string{
		partialJSON("a"), partialJSON("b"), partialJSON("c"), partialJSON("d"), partialJSON("e"),
		`{"executive_summary":"merged","key_points":["point a","point b"],"decisions":[],"action_items":[],"confidence":0.8}`,
	}}
	summarizer := summarize.NewSummarizer(cfg, logging.NewNop(), provider)

	summary, err := summarizer.Summarize(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary.ExecutiveSummary != "merged" {
		t.Fatalf("expected merged summary, got %+v", summary)
	}

	// All but the final prompt are chunk prompts in part order.
	chunkPrompts := provider.prompts[:len(provider.prompts)-1]
	for i, prompt := range chunkPrompts {
		marker := fmt.Sprintf("[Part %d of %d]", i+1, len(chunkPrompts))
		if !strings.HasPrefix(prompt, marker) {
			t.Fatalf("chunk prompt %d missing marker %q: %q", i, marker, prompt[:40])
		}
	}

	// The merge prompt carries each partial summary in order.
	mergePrompt := provider.prompts[len(provider.prompts)-1]
	lastIdx := -1
	for i := range chunkPrompts {
		idx := strings.Index(mergePrompt, fmt.Sprintf("[Part %d]", i+1))
		if idx < 0 || idx < lastIdx {
			t.Fatalf("merge prompt parts out of order:\n%s", mergePrompt)
		}
		lastIdx = idx
	}
}

func TestSummarizeProviderFailureIsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	provider := &scriptedProvider{err: errors.New("upstream 502")}
	summarizer := summarize.NewSummarizer(cfg, logging.NewNop(), provider)

	_, err := summarizer.Summarize(context.Background(), "short transcript")
	if !services.IsKind(err, services.KindProviderTransient) {
		t.Fatalf("expected provider_transient, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("provider_transient should be retryable")
	}
}

func TestSummarizeQuotaFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	provider := &scriptedProvider{err: errors.New("RESOURCE_EXHAUSTED: quota")}
	summarizer := summarize.NewSummarizer(cfg, logging.NewNop(), provider)

	_, err := summarizer.Summarize(context.Background(), "short transcript")
	if !services.IsKind(err, services.KindQuotaExceeded) {
		t.Fatalf("expected quota_exceeded, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("quota exhaustion is not retryable")
	}
}

func TestSummarizeBrokenMergeIsChunkMerge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Summarize.ChunkWords = 5
	cfg.Summarize.OverlapWords = 1

	words := make([]string, 12)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}

	provider := &scriptedProvider{responses: []string{
		partialJSON("a"), partialJSON("b"), partialJSON("c"),
		"this is not json at all and has no braces",
	}}
	summarizer := summarize.NewSummarizer(cfg, logging.NewNop(), provider)

	_, err := summarizer.Summarize(context.Background(), strings.Join(words, " "))
	if !services.IsKind(err, services.KindChunkMerge) {
		t.Fatalf("expected chunk_merge, got %v", err)
	}
}

func TestSummarizeStageStoresSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	provider := &scriptedProvider{responses: []string{
		`{"executive_summary":"done","key_points":[],"decisions":[],"action_items":[],"confidence":1.4}`,
	}}
	handler := summarize.NewStage(cfg, store, logging.NewNop(), summarize.NewSummarizer(cfg, logging.NewNop(), provider))

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123", sessions.PlatformZoom)
	transcript := transcription.Transcript{Segments: []transcription.Segment{{Text: "we are done", Start: 0, End: 1}}}
	encoded, err := transcript.Encode()
	if err != nil {
		t.Fatalf("encode transcript: %v", err)
	}
	session.TranscriptJSON = encoded

	ctx := context.Background()
	if err := handler.Prepare(ctx, session); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, session); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	summary, err := summarize.Decode(session.SummaryJSON)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if summary.ExecutiveSummary != "done" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Confidence != 1 {
		t.Fatalf("confidence should be clamped to 1, got %v", summary.Confidence)
	}
}

func TestSummarizeStageRequiresTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := summarize.NewStage(cfg, store, logging.NewNop(), summarize.NewSummarizer(cfg, logging.NewNop(), &scriptedProvider{}))

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123", sessions.PlatformZoom)
	err := handler.Prepare(context.Background(), session)
	if !services.IsKind(err, services.KindInvalidInput) {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}
