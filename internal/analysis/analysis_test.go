package analysis_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sunny/internal/analysis"
	"sunny/internal/llm"
	"sunny/internal/logging"
	"sunny/internal/services"
	"sunny/internal/sessions"
	"sunny/internal/testsupport"
	"sunny/internal/transcription"
)

type fixedProvider struct {
	content string
	err     error
}

func (p *fixedProvider) Name() string { return "fixed" }

func (p *fixedProvider) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.content, nil
}

func (p *fixedProvider) HealthCheck(context.Context) error { return nil }

type slowAnalyzer struct{ delay time.Duration }

func (*slowAnalyzer) Name() string { return "slow" }

func (a *slowAnalyzer) Analyze(ctx context.Context, input analysis.Input) (any, error) {
	select {
	case <-time.After(a.delay):
		return map[string]string{"done": "yes"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func sampleTranscript() transcription.Transcript {
	return transcription.Transcript{
		Language: "en",
		Segments: []transcription.Segment{
			{Text: "welcome everyone to the planning meeting", Start: 0, End: 4},
			{Text: "we decided to ship the beta on friday", Start: 4.2, End: 8},
			{Text: "alice will draft the announcement", Start: 10.5, End: 13},
		},
	}
}

func encodeTranscript(t *testing.T, transcript transcription.Transcript) string {
	t.Helper()
	encoded, err := transcript.Encode()
	if err != nil {
		t.Fatalf("encode transcript: %v", err)
	}
	return encoded
}

func TestDiarizationSplitsOnGaps(t *testing.T) {
	analyzer := analysis.NewDiarization()
	data, err := analyzer.Analyze(context.Background(), analysis.Input{Transcript: sampleTranscript()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	diar := data.(analysis.DiarizationData)
	if len(diar.Turns) != 2 {
		t.Fatalf("expected 2 turns around the 2.5s gap, got %d", len(diar.Turns))
	}
	if diar.Turns[0].Speaker == diar.Turns[1].Speaker {
		t.Fatal("consecutive turns should alternate speakers")
	}
	if diar.Turns[0].SegmentCount != 2 || diar.Turns[1].SegmentCount != 1 {
		t.Fatalf("unexpected segment distribution %+v", diar.Turns)
	}
}

func TestDiarizationAnnotatesEverySegment(t *testing.T) {
	analyzer := analysis.NewDiarization()
	data, err := analyzer.Analyze(context.Background(), analysis.Input{Transcript: sampleTranscript()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	diar := data.(analysis.DiarizationData)
	if len(diar.SegmentSpeakers) != 3 {
		t.Fatalf("expected one speaker per segment, got %v", diar.SegmentSpeakers)
	}
	if diar.SegmentSpeakers[0] != diar.SegmentSpeakers[1] {
		t.Fatal("segments within a turn should share a speaker")
	}
	if diar.SegmentSpeakers[2] == diar.SegmentSpeakers[1] {
		t.Fatal("segment after the gap should carry the next speaker")
	}
}

func TestAnalyticsComputesTalkTime(t *testing.T) {
	analyzer := analysis.NewAnalytics()
	data, err := analyzer.Analyze(context.Background(), analysis.Input{Transcript: sampleTranscript()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	stats := data.(analysis.AnalyticsData)
	if stats.DurationSeconds != 13 {
		t.Fatalf("duration = %v", stats.DurationSeconds)
	}
	if stats.WordCount != 19 {
		t.Fatalf("word count = %d", stats.WordCount)
	}
	if stats.SegmentCount != 3 {
		t.Fatalf("segment count = %d", stats.SegmentCount)
	}
	if stats.WordsPerMinute <= 0 {
		t.Fatalf("words per minute = %v", stats.WordsPerMinute)
	}
}

func TestSentimentAnalyzerDecodesPayload(t *testing.T) {
	provider := &fixedProvider{content: `{"overall":"positive","score":0.6,"highlights":[]}`}
	analyzer := analysis.NewSentiment(provider)
	data, err := analyzer.Analyze(context.Background(), analysis.Input{Transcript: sampleTranscript()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	sentiment := data.(analysis.SentimentData)
	if sentiment.Overall != "positive" || sentiment.Score != 0.6 {
		t.Fatalf("unexpected sentiment %+v", sentiment)
	}
}

func TestMemoryAnalyzerIndexesChunks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	session := testsupport.NewSession(t, store, "https://zoom.us/j/123", sessions.PlatformZoom)

	analyzer := analysis.NewMemory(store, 50, 5)
	data, err := analyzer.Analyze(context.Background(), analysis.Input{
		Session:    session,
		Transcript: sampleTranscript(),
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	memory := data.(analysis.MemoryData)
	if memory.ChunksIndexed != 1 {
		t.Fatalf("expected one indexed chunk, got %d", memory.ChunksIndexed)
	}

	chunks, err := store.SearchMemory(context.Background(), "announcement", 5)
	if err != nil {
		t.Fatalf("SearchMemory: %v", err)
	}
	if len(chunks) != 1 || chunks[0].SessionID != session.ID {
		t.Fatalf("indexed chunk not searchable: %+v", chunks)
	}
}

func TestStageIsolatesAnalyzerFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	failing := analysis.NewSentiment(&fixedProvider{err: errors.New("model offline")})
	analyzers := []analysis.Analyzer{failing, analysis.NewAnalytics()}
	handler := analysis.NewStage(cfg, store, logging.NewNop(), analyzers)

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123", sessions.PlatformZoom)
	session.TranscriptJSON = encodeTranscript(t, sampleTranscript())

	ctx := context.Background()
	if err := handler.Prepare(ctx, session); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, session); err != nil {
		t.Fatalf("one failing analyzer must not fail the stage: %v", err)
	}

	report, err := analysis.DecodeReport(session.AnalysisJSON)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	sentiment, ok := report.ResultFor("sentiment")
	if !ok || sentiment.Status != analysis.ResultFailed {
		t.Fatalf("expected failed sentiment result, got %+v", sentiment)
	}
	if !strings.Contains(sentiment.Detail, "model offline") {
		t.Fatalf("failure detail lost: %q", sentiment.Detail)
	}
	stats, ok := report.ResultFor("analytics")
	if !ok || stats.Status != analysis.ResultOK {
		t.Fatalf("expected analytics to succeed, got %+v", stats)
	}
}

func TestStageTimesOutSlowAnalyzer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Analysis.AnalyzerTimeout = 1
	cfg.Analysis.FanoutTimeout = 30
	store := testsupport.MustOpenStore(t, cfg)

	handler := analysis.NewStage(cfg, store, logging.NewNop(), []analysis.Analyzer{
		&slowAnalyzer{delay: 10 * time.Second},
		analysis.NewAnalytics(),
	})

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123", sessions.PlatformZoom)
	session.TranscriptJSON = encodeTranscript(t, sampleTranscript())

	start := time.Now()
	if err := handler.Execute(context.Background(), session); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("slow analyzer was not cut off by its timeout")
	}

	report, err := analysis.DecodeReport(session.AnalysisJSON)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	slow, ok := report.ResultFor("slow")
	if !ok || slow.Status != analysis.ResultFailed {
		t.Fatalf("expected failed slow analyzer, got %+v", slow)
	}
	if slow.Detail != "timed out" {
		t.Fatalf("expected timeout detail, got %q", slow.Detail)
	}
}

func TestStageFanoutDeadlineSkipsSlowAnalyzer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Analysis.AnalyzerTimeout = 0
	cfg.Analysis.FanoutTimeout = 1
	store := testsupport.MustOpenStore(t, cfg)

	handler := analysis.NewStage(cfg, store, logging.NewNop(), []analysis.Analyzer{
		&slowAnalyzer{delay: 10 * time.Second},
		analysis.NewAnalytics(),
	})

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123", sessions.PlatformZoom)
	session.TranscriptJSON = encodeTranscript(t, sampleTranscript())

	if err := handler.Execute(context.Background(), session); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	report, err := analysis.DecodeReport(session.AnalysisJSON)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	slow, ok := report.ResultFor("slow")
	if !ok || slow.Status != analysis.ResultSkipped {
		t.Fatalf("expected deadline-truncated analyzer to be skipped, got %+v", slow)
	}
	if slow.Detail != "timeout" {
		t.Fatalf("expected timeout detail, got %q", slow.Detail)
	}
	stats, ok := report.ResultFor("analytics")
	if !ok || stats.Status != analysis.ResultOK {
		t.Fatalf("expected analytics to finish inside the deadline, got %+v", stats)
	}
}

func TestStageFailsOnEmptyTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	handler := analysis.NewStage(cfg, store, logging.NewNop(), []analysis.Analyzer{analysis.NewAnalytics()})

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123", sessions.PlatformZoom)
	session.TranscriptJSON = encodeTranscript(t, transcription.Transcript{Language: "en"})

	err := handler.Execute(context.Background(), session)
	if !services.IsKind(err, services.KindInvalidInput) {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestRegistryHonorsCapabilityFlags(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Analysis.Diarization = true
	cfg.Analysis.Sentiment = false
	cfg.Analysis.Topics = false
	cfg.Analysis.ActionItems = false
	cfg.Analysis.Analytics = true
	cfg.Analysis.Memory = false
	store := testsupport.MustOpenStore(t, cfg)

	var provider llm.Provider = &fixedProvider{}
	analyzers := analysis.NewRegistry(cfg, store, provider)
	wantOrder := []string{"diarization", "sentiment", "topics", "action_items", "analytics", "memory"}
	if len(analyzers) != len(wantOrder) {
		t.Fatalf("expected %d analyzers, got %d", len(wantOrder), len(analyzers))
	}
	for i, name := range wantOrder {
		if analyzers[i].Name() != name {
			t.Fatalf("registry slot %d: expected %s, got %s", i, name, analyzers[i].Name())
		}
	}

	// disabled capabilities are stubs that record skipped:unavailable
	data, err := analyzers[1].Analyze(context.Background(), analysis.Input{})
	if data != nil || !errors.Is(err, analysis.ErrSkip) {
		t.Fatalf("expected disabled sentiment to skip, got (%v, %v)", data, err)
	}
}

func TestStageReportsDisabledAnalyzersAsUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Analysis.Diarization = true
	cfg.Analysis.Sentiment = false
	cfg.Analysis.Topics = false
	cfg.Analysis.ActionItems = false
	cfg.Analysis.Analytics = true
	cfg.Analysis.Memory = false
	store := testsupport.MustOpenStore(t, cfg)

	analyzers := analysis.NewRegistry(cfg, store, &fixedProvider{})
	handler := analysis.NewStage(cfg, store, logging.NewNop(), analyzers)

	session := testsupport.NewSession(t, store, "https://zoom.us/j/123", sessions.PlatformZoom)
	session.TranscriptJSON = encodeTranscript(t, sampleTranscript())

	if err := handler.Execute(context.Background(), session); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	report, err := analysis.DecodeReport(session.AnalysisJSON)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if len(report.Results) != 6 {
		t.Fatalf("expected an entry per capability, got %d", len(report.Results))
	}
	for _, name := range []string{"sentiment", "topics", "action_items", "memory"} {
		result, ok := report.ResultFor(name)
		if !ok {
			t.Fatalf("disabled analyzer %s missing from report", name)
		}
		if result.Status != analysis.ResultSkipped || result.Detail != "unavailable" {
			t.Fatalf("expected %s skipped:unavailable, got %+v", name, result)
		}
	}
	if stats, ok := report.ResultFor("analytics"); !ok || stats.Status != analysis.ResultOK {
		t.Fatalf("expected analytics ok, got %+v", stats)
	}
}
