package summarize

import (
	"fmt"
	"strings"
	"testing"
)

func makeWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestChunkWordsShortTextIsSingleChunk(t *testing.T) {
	chunks := ChunkWords(makeWords(100), 4000, 200)
	if len(chunks) != 1 {
		t.Fatalf("expected single chunk, got %d", len(chunks))
	}
}

func TestChunkWordsOverlap(t *testing.T) {
	chunks := ChunkWords(makeWords(25), 10, 3)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1])
		cur := strings.Fields(chunks[i])
		tail := prev[len(prev)-3:]
		head := cur[:3]
		for j := range tail {
			if tail[j] != head[j] {
				t.Fatalf("chunk %d does not overlap predecessor: tail %v head %v", i, tail, head)
			}
		}
	}

	// Every word must appear: the final chunk ends with the last word.
	last := strings.Fields(chunks[len(chunks)-1])
	if last[len(last)-1] != "w24" {
		t.Fatalf("final chunk does not reach the end: %v", last)
	}
}

func TestChunkWordsDeterministic(t *testing.T) {
	text := makeWords(5000)
	first := ChunkWords(text, 400, 50)
	second := ChunkWords(text, 400, 50)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkWordsEmptyText(t *testing.T) {
	if chunks := ChunkWords("   ", 100, 10); chunks != nil {
		t.Fatalf("expected nil for empty text, got %v", chunks)
	}
}

func TestChunkWordsDegenOverlap(t *testing.T) {
	// overlap >= chunk size must still terminate and cover the text.
	chunks := ChunkWords(makeWords(10), 4, 9)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	last := strings.Fields(chunks[len(chunks)-1])
	if last[len(last)-1] != "w9" {
		t.Fatalf("coverage lost with degenerate overlap: %v", chunks)
	}
}
