// Package chunk implements the five content-chunking strategies named in
// spec §6.1/§6.2, supplementing the distilled spec's chunk endpoint with
// the parameter table the original riptide-api chunking handlers expose.
package chunk

import (
	"strings"

	"github.com/riptide-dev/riptide/internal/apperr"
)

// Mode selects a chunking strategy.
type Mode string

const (
	ModeTopic      Mode = "topic"
	ModeSliding    Mode = "sliding"
	ModeFixed      Mode = "fixed"
	ModeSentence   Mode = "sentence"
	ModeHTMLAware  Mode = "html-aware"
)

// Params holds the §6.2 parameter table, already validated and defaulted.
type Params struct {
	ChunkSize         int
	OverlapSize       int
	MinChunkSize      int
	PreserveSentences bool
	WindowSize        int
}

// DefaultParams returns the spec §6.2 defaults.
func DefaultParams() Params {
	return Params{
		ChunkSize:         1000,
		OverlapSize:       200,
		MinChunkSize:      100,
		PreserveSentences: true,
		WindowSize:        0, // resolved to ChunkSize by Validate if left zero
	}
}

// Validate enforces the boundary constants spec §6.1 names: overlap_size
// < chunk_size, window_size > overlap_size when provided.
func (p *Params) Validate() error {
	if p.ChunkSize <= 0 {
		return apperr.Validation("chunk_size must be positive")
	}
	if p.OverlapSize < 0 || p.OverlapSize >= p.ChunkSize {
		return apperr.Validation("overlap_size must be < chunk_size")
	}
	if p.WindowSize == 0 {
		p.WindowSize = p.ChunkSize
	}
	if p.WindowSize <= p.OverlapSize {
		return apperr.Validation("window_size must be > overlap_size")
	}
	if p.MinChunkSize < 0 {
		return apperr.Validation("min_chunk_size must be >= 0")
	}
	return nil
}

// Chunk is a single output segment.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	// TokenCount approximates tokens as whitespace-separated words, the
	// same heuristic the reading-time estimator uses.
	TokenCount int `json:"token_count"`
}

// Strategy implements one chunking mode.
type Strategy interface {
	Chunk(content string, params Params) ([]Chunk, error)
}

var registry = map[Mode]Strategy{
	ModeTopic:     topicStrategy{},
	ModeSliding:   slidingStrategy{},
	ModeFixed:     fixedStrategy{},
	ModeSentence:  sentenceStrategy{},
	ModeHTMLAware: htmlAwareStrategy{},
}

// Run validates content and params, looks up the registered strategy for
// mode, and executes it. Unknown modes are rejected with 400
// InvalidRequest per spec §6.1.
func Run(mode Mode, content string, params Params) ([]Chunk, error) {
	const maxContentBytes = 10 * 1024 * 1024
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("content must not be empty")
	}
	if len(content) > maxContentBytes {
		return nil, apperr.Validation("content exceeds 10MB limit")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	strategy, ok := registry[mode]
	if !ok {
		return nil, apperr.InvalidRequest("unknown chunking mode %q", mode)
	}

	chunks, err := strategy.Chunk(content, params)
	if err != nil {
		return nil, err
	}
	return mergeSmallChunks(chunks, params.MinChunkSize), nil
}

// mergeSmallChunks folds any chunk smaller than minSize forward into its
// successor, per spec §6.2's "smaller chunks are merged forward".
func mergeSmallChunks(chunks []Chunk, minSize int) []Chunk {
	if minSize <= 0 || len(chunks) <= 1 {
		return reindex(chunks)
	}

	merged := make([]Chunk, 0, len(chunks))
	for i := 0; i < len(chunks); i++ {
		c := chunks[i]
		if c.TokenCount < minSize && i+1 < len(chunks) {
			chunks[i+1].Text = c.Text + " " + chunks[i+1].Text
			chunks[i+1].TokenCount = c.TokenCount + chunks[i+1].TokenCount
			continue
		}
		merged = append(merged, c)
	}
	return reindex(merged)
}

func reindex(chunks []Chunk) []Chunk {
	for i := range chunks {
		chunks[i].Index = i
	}
	return chunks
}

func tokenCount(s string) int {
	return len(strings.Fields(s))
}
