package router

import (
	"context"
	"errors"
	"testing"

	"github.com/riptide-dev/riptide/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatic struct {
	result ports.FetchResult
	err    error
}

func (f fakeStatic) Fetch(context.Context, string, ports.FetchOptions) (ports.FetchResult, error) {
	return f.result, f.err
}

type fakeDynamic struct {
	result ports.RenderResult
	err    error
}

func (f fakeDynamic) HealthCheck(context.Context) error { return nil }
func (f fakeDynamic) Name() string                      { return "fake" }
func (f fakeDynamic) Render(context.Context, string, ports.RenderOptions) (ports.RenderResult, error) {
	return f.result, f.err
}

type fakePDF struct {
	result ports.PDFResult
	err    error
}

func (f fakePDF) Fetch(context.Context, string) (ports.PDFResult, error) {
	return f.result, f.err
}

func TestRouter_StaticSucceedsWithRichContent(t *testing.T) {
	static := fakeStatic{result: ports.FetchResult{FinalURL: "https://example.com", Body: []byte(richHTML())}}
	r := New(static, fakeDynamic{}, fakePDF{})

	res, err := r.Extract(context.Background(), Request{URL: "https://example.com", Mode: ModeAdaptive})
	require.NoError(t, err)
	assert.Equal(t, ModeStatic, res.UsedMode)
	assert.Empty(t, res.Fallbacks)
}

func TestRouter_FallsBackToDynamicOnThinStatic(t *testing.T) {
	static := fakeStatic{result: ports.FetchResult{FinalURL: "https://example.com", Body: []byte("<html></html>")}}
	dynamic := fakeDynamic{result: ports.RenderResult{FinalURL: "https://example.com", HTML: richHTML()}}
	r := New(static, dynamic, fakePDF{})

	res, err := r.Extract(context.Background(), Request{URL: "https://example.com", Mode: ModeAdaptive})
	require.NoError(t, err)
	assert.Equal(t, ModeDynamic, res.UsedMode)
	assert.Contains(t, res.Fallbacks, ModeStatic)
}

func TestRouter_FallsBackToPDFWhenStaticAndDynamicFail(t *testing.T) {
	static := fakeStatic{err: errors.New("boom")}
	dynamic := fakeDynamic{err: errors.New("boom")}
	pdfFetcher := fakePDF{result: ports.PDFResult{FinalURL: "https://example.com/doc.pdf", Bytes: []byte("%PDF-1.4")}}
	r := New(static, dynamic, pdfFetcher)

	res, err := r.Extract(context.Background(), Request{URL: "https://example.com/doc", Mode: ModeAdaptive})
	require.NoError(t, err)
	assert.Equal(t, ModePDF, res.UsedMode)
}

func TestRouter_PDFURLGoesStraightToPDFMode(t *testing.T) {
	pdfFetcher := fakePDF{result: ports.PDFResult{FinalURL: "https://example.com/doc.pdf", Bytes: []byte("%PDF-1.4")}}
	r := New(fakeStatic{}, fakeDynamic{}, pdfFetcher)

	res, err := r.Extract(context.Background(), Request{URL: "https://example.com/doc.pdf"})
	require.NoError(t, err)
	assert.Equal(t, ModePDF, res.UsedMode)
}

func TestRouter_UnknownModeRejected(t *testing.T) {
	r := New(fakeStatic{}, fakeDynamic{}, fakePDF{})
	_, err := r.Extract(context.Background(), Request{URL: "https://example.com", Mode: "bogus"})
	assert.Error(t, err)
}

func richHTML() string {
	return "<html><body>" + repeat("lorem ipsum dolor sit amet ", 20) + "</body></html>"
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
