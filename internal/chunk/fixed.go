package chunk

import "strings"

// fixedStrategy splits content into equal-sized, non-overlapping chunks
// of approximately chunk_size tokens (whitespace-separated words).
type fixedStrategy struct{}

func (fixedStrategy) Chunk(content string, params Params) ([]Chunk, error) {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	for start := 0; start < len(words); start += params.ChunkSize {
		end := start + params.ChunkSize
		if end > len(words) {
			end = len(words)
		}
		text := strings.Join(words[start:end], " ")
		chunks = append(chunks, Chunk{Text: text, TokenCount: end - start})
	}
	return chunks, nil
}
