package chunk

import "strings"

// topicStrategy chunks at paragraph (blank-line) boundaries, treating
// each paragraph as a topic unit and packing consecutive paragraphs up
// to chunk_size tokens, falling back to the sentence splitter when
// preserve_sentences demands finer-grained boundaries within an
// over-long paragraph.
type topicStrategy struct{}

func (topicStrategy) Chunk(content string, params Params) ([]Chunk, error) {
	paragraphs := strings.Split(content, "\n\n")

	var chunks []Chunk
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if currentTokens == 0 {
			return
		}
		chunks = append(chunks, Chunk{Text: strings.TrimSpace(current.String()), TokenCount: currentTokens})
		current.Reset()
		currentTokens = 0
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		pTokens := tokenCount(para)

		if pTokens > params.ChunkSize && params.PreserveSentences {
			flush()
			sub, _ := sentenceStrategy{}.Chunk(para, params)
			chunks = append(chunks, sub...)
			continue
		}

		if currentTokens > 0 && currentTokens+pTokens > params.ChunkSize {
			flush()
		}
		current.WriteString(para)
		current.WriteString("\n\n")
		currentTokens += pTokens
	}
	flush()

	return chunks, nil
}
