package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"sunny/internal/sessions"
	"sunny/internal/summarize"
)

// Memory indexes transcript chunks into the session database so past
// meetings stay searchable by keyword.
type Memory struct {
	store     *sessions.Store
	chunkSize int
	overlap   int
}

// NewMemory constructs the memory indexer. Chunk boundaries reuse the
// summarization chunking parameters so indexed chunks line up with what the
// summarizer saw.
func NewMemory(store *sessions.Store, chunkSize, overlap int) *Memory {
	return &Memory{store: store, chunkSize: chunkSize, overlap: overlap}
}

func (*Memory) Name() string { return "memory" }

// MemoryData is the memory analyzer payload.
type MemoryData struct {
	ChunksIndexed int      `json:"chunks_indexed"`
	Keywords      []string `json:"keywords"`
}

func (m *Memory) Analyze(ctx context.Context, input Input) (any, error) {
	text := input.Transcript.Text()
	if text == "" {
		return nil, ErrSkip
	}
	if m.store == nil || input.Session == nil {
		return nil, fmt.Errorf("memory: no store available")
	}

	chunks := summarize.ChunkWords(text, m.chunkSize, m.overlap)
	data := MemoryData{}
	for i, chunk := range chunks {
		keywords := extractKeywords(chunk, 8)
		if err := m.store.IndexMemoryChunk(ctx, input.Session.ID, i, chunk, strings.Join(keywords, ",")); err != nil {
			return nil, fmt.Errorf("memory: index chunk %d: %w", i, err)
		}
		data.ChunksIndexed++
		data.Keywords = mergeKeywords(data.Keywords, keywords, 20)
	}
	return data, nil
}

// extractKeywords picks the most frequent non-trivial words in a chunk.
func extractKeywords(text string, limit int) []string {
	counts := make(map[string]int)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]")
		if len(word) < 4 || stopWords[word] {
			continue
		}
		counts[word]++
	}

	keywords := make([]string, 0, len(counts))
	for word := range counts {
		keywords = append(keywords, word)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	if len(keywords) > limit {
		keywords = keywords[:limit]
	}
	return keywords
}

func mergeKeywords(existing, incoming []string, limit int) []string {
	seen := make(map[string]bool, len(existing))
	for _, word := range existing {
		seen[word] = true
	}
	for _, word := range incoming {
		if len(existing) >= limit {
			break
		}
		if !seen[word] {
			seen[word] = true
			existing = append(existing, word)
		}
	}
	return existing
}

var stopWords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"they": true, "will": true, "would": true, "could": true, "should": true,
	"about": true, "there": true, "their": true, "where": true, "which": true,
	"going": true, "think": true, "because": true, "really": true, "just": true,
	"like": true, "know": true, "yeah": true, "okay": true, "right": true,
	"well": true, "been": true, "were": true, "what": true, "when": true,
	"them": true, "then": true, "than": true, "some": true, "want": true,
}
