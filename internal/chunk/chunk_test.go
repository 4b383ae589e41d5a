package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	return strings.Repeat("word ", n)
}

func TestRun_UnknownModeRejected(t *testing.T) {
	_, err := Run("bogus", "hello world", DefaultParams())
	assert.Error(t, err)
}

func TestRun_EmptyContentRejected(t *testing.T) {
	_, err := Run(ModeFixed, "   ", DefaultParams())
	assert.Error(t, err)
}

func TestParams_Validate_OverlapMustBeLessThanChunkSize(t *testing.T) {
	p := Params{ChunkSize: 100, OverlapSize: 100, WindowSize: 100}
	err := p.Validate()
	assert.Error(t, err)
}

func TestFixedStrategy_SplitsIntoEqualChunks(t *testing.T) {
	params := DefaultParams()
	params.ChunkSize = 10
	params.OverlapSize = 0
	params.MinChunkSize = 0
	chunks, err := Run(ModeFixed, words(25), params)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, 10, chunks[0].TokenCount)
	assert.Equal(t, 10, chunks[1].TokenCount)
	assert.Equal(t, 5, chunks[2].TokenCount)
}

func TestSlidingStrategy_ProducesOverlappingChunks(t *testing.T) {
	params := Params{ChunkSize: 10, OverlapSize: 4, WindowSize: 6, MinChunkSize: 0, PreserveSentences: true}
	chunks, err := Run(ModeSliding, words(20), params)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
}

func TestSentenceStrategy_NeverSplitsMidSentence(t *testing.T) {
	content := "First sentence here. Second sentence follows. Third one too."
	params := DefaultParams()
	params.ChunkSize = 3
	params.OverlapSize = 0
	chunks, err := Run(ModeSentence, content, params)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.True(t, strings.HasSuffix(strings.TrimSpace(c.Text), ".") || strings.HasSuffix(strings.TrimSpace(c.Text), "!") || strings.HasSuffix(strings.TrimSpace(c.Text), "?"))
	}
}

func TestHTMLAwareStrategy_ChunksAtBlockBoundaries(t *testing.T) {
	html := "<html><body><p>" + words(5) + "</p><p>" + words(5) + "</p></body></html>"
	chunks, err := Run(ModeHTMLAware, html, DefaultParams())
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
}

func TestMergeSmallChunks_FoldsForward(t *testing.T) {
	chunks := []Chunk{
		{Text: "tiny", TokenCount: 1},
		{Text: "rest of content", TokenCount: 50},
	}
	merged := mergeSmallChunks(chunks, 10)
	require.Len(t, merged, 1)
	assert.Contains(t, merged[0].Text, "tiny")
}
