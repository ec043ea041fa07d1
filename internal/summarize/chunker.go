package summarize

import "strings"

// ChunkWords splits text into chunks of at most chunkSize words where each
// chunk repeats the last overlap words of its predecessor. The split is
// deterministic: the same text always yields the same chunks in the same
// order.
func ChunkWords(text string, chunkSize, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if chunkSize <= 0 || len(words) <= chunkSize {
		return []string{strings.Join(words, " ")}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	step := chunkSize - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
