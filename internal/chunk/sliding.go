package chunk

import "strings"

// slidingStrategy advances by window_size tokens per chunk while each
// chunk spans chunk_size tokens, so adjacent chunks overlap by
// chunk_size - window_size tokens. overlap_size is not read here, so the
// overlap is set by window_size alone.
type slidingStrategy struct{}

func (slidingStrategy) Chunk(content string, params Params) ([]Chunk, error) {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil, nil
	}

	stride := params.WindowSize
	if stride <= 0 {
		stride = params.ChunkSize
	}

	var chunks []Chunk
	for start := 0; start < len(words); start += stride {
		end := start + params.ChunkSize
		if end > len(words) {
			end = len(words)
		}
		text := strings.Join(words[start:end], " ")
		chunks = append(chunks, Chunk{Text: text, TokenCount: end - start})
		if end == len(words) {
			break
		}
	}
	return chunks, nil
}
