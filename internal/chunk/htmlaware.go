package chunk

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/riptide-dev/riptide/internal/apperr"
)

// htmlAwareStrategy parses content as HTML and chunks at block-element
// boundaries (p, div, section, article, li, h1-h6), so a chunk never
// straddles two unrelated structural blocks. Falls back to the plain
// topic strategy for content that doesn't parse as structured HTML.
type htmlAwareStrategy struct{}

var blockSelector = "p, div, section, article, li, h1, h2, h3, h4, h5, h6, blockquote"

func (htmlAwareStrategy) Chunk(content string, params Params) ([]Chunk, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "parse html for chunking", err)
	}

	var blocks []string
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			blocks = append(blocks, text)
		}
	})

	if len(blocks) == 0 {
		return topicStrategy{}.Chunk(content, params)
	}

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

	for _, block := range blocks {
		bTokens := tokenCount(block)
		if currentTokens > 0 && currentTokens+bTokens > params.ChunkSize {
			flush()
		}
		current.WriteString(block)
		current.WriteString("\n")
		currentTokens += bTokens
	}
	flush()

	return chunks, nil
}
