package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/riptide-dev/riptide/internal/circuit"
	"github.com/riptide-dev/riptide/internal/config"
	"github.com/riptide-dev/riptide/internal/ports"
	"github.com/riptide-dev/riptide/internal/resource"
	"github.com/riptide-dev/riptide/internal/router"
	"github.com/riptide-dev/riptide/internal/sandbox"
	"github.com/riptide-dev/riptide/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatic struct {
	calls int
	body  string
}

func (f *fakeStatic) Fetch(_ context.Context, targetURL string, _ ports.FetchOptions) (ports.FetchResult, error) {
	f.calls++
	return ports.FetchResult{FinalURL: targetURL, Body: []byte(f.body), ContentType: "text/html", StatusCode: 200}, nil
}

func testApp(t *testing.T, static ports.StaticFetcher) *App {
	t.Helper()
	cfg := &config.Config{
		CacheNamespace:   "test",
		CacheVersion:     "v1",
		ContentCacheTTL:  time.Minute,
		IdempotencyTTL:   time.Minute,
		RateLimitEnabled: false,
	}

	pool, err := sandbox.NewPool(context.Background(), 2, 2, 2048, 1_000_000, time.Second, 50*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	idempotency := store.NewMemoryIdempotencyStore(time.Minute)
	t.Cleanup(idempotency.Close)

	resources := resource.NewManager(100, 10, 0, time.Hour, time.Hour, 30*time.Second)
	t.Cleanup(resources.Close)

	return &App{
		Config:      cfg,
		Cache:       store.NewMemoryCache("test", time.Minute),
		Idempotency: idempotency,
		Resources:   resources,
		Circuits: map[string]*circuit.Breaker{
			"static":  circuit.New(circuit.DefaultConfig("static")),
			"dynamic": circuit.New(circuit.DefaultConfig("dynamic")),
			"pdf":     circuit.New(circuit.DefaultConfig("pdf")),
		},
		SandboxPool: pool,
		Router:      router.New(static, nil, nil),
	}
}

func richHTML() string {
	return "<html><body><p>" + repeatWord("content ", 120) + "</p></body></html>"
}

func repeatWord(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func TestExtract_CachesResultAndHitsOnSecondCall(t *testing.T) {
	static := &fakeStatic{body: richHTML()}
	a := testApp(t, static)

	resp1, err := a.Extract(context.Background(), ExtractRequest{URL: "http://example.com/a", Mode: router.ModeStatic})
	require.NoError(t, err)
	assert.False(t, resp1.CacheHit)
	assert.Equal(t, 1, static.calls)

	resp2, err := a.Extract(context.Background(), ExtractRequest{URL: "http://example.com/a", Mode: router.ModeStatic})
	require.NoError(t, err)
	assert.True(t, resp2.CacheHit)
	assert.Equal(t, 1, static.calls, "second extract should be served from cache, not re-fetched")
	assert.Equal(t, resp1.Doc.URL, resp2.Doc.URL)
}

func TestExtract_DifferentOptionsBypassCache(t *testing.T) {
	static := &fakeStatic{body: richHTML()}
	a := testApp(t, static)

	_, err := a.Extract(context.Background(), ExtractRequest{URL: "http://example.com/a", Mode: router.ModeStatic, Options: map[string]string{"x": "1"}})
	require.NoError(t, err)
	_, err = a.Extract(context.Background(), ExtractRequest{URL: "http://example.com/a", Mode: router.ModeStatic, Options: map[string]string{"x": "2"}})
	require.NoError(t, err)

	assert.Equal(t, 2, static.calls)
}

func TestExtract_PopulatesStructuredDocumentFields(t *testing.T) {
	html := `<html lang="en"><head><title>Example Article</title>
<meta name="author" content="Jane Doe">
</head><body><p>` + repeatWord("content ", 120) + `</p>
<a href="/other">link</a><img src="/pic.png"></body></html>`
	static := &fakeStatic{body: html}
	a := testApp(t, static)

	resp, err := a.Extract(context.Background(), ExtractRequest{URL: "http://example.com/a", Mode: router.ModeStatic})
	require.NoError(t, err)
	assert.Equal(t, "Example Article", resp.Doc.Title)
	assert.Equal(t, "Jane Doe", resp.Doc.Byline)
	assert.Equal(t, "en", resp.Doc.Language)
	assert.Contains(t, resp.Doc.Links, "http://example.com/other")
	assert.Contains(t, resp.Doc.Media, "http://example.com/pic.png")
}

func TestExtract_GoesThroughSandboxPool(t *testing.T) {
	static := &fakeStatic{body: richHTML()}
	a := testApp(t, static)

	_, err := a.Extract(context.Background(), ExtractRequest{URL: "http://example.com/a", Mode: router.ModeStatic})
	require.NoError(t, err)

	stats := a.SandboxPool.Stats()
	assert.Equal(t, int64(1), stats.Acquired)
	assert.Equal(t, int64(1), stats.Released)
}

// blockingStatic blocks inside Fetch until release is closed, letting a
// test hold one Extract call in flight while a second one races it.
type blockingStatic struct {
	mu      sync.Mutex
	calls   int
	body    string
	release chan struct{}
}

func (f *blockingStatic) Fetch(_ context.Context, targetURL string, _ ports.FetchOptions) (ports.FetchResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	<-f.release
	return ports.FetchResult{FinalURL: targetURL, Body: []byte(f.body), ContentType: "text/html", StatusCode: 200}, nil
}

func TestExtract_ConcurrentCallsShareIdempotencyLock(t *testing.T) {
	static := &blockingStatic{body: richHTML(), release: make(chan struct{})}
	a := testApp(t, static)

	first := make(chan error, 1)
	go func() {
		_, err := a.Extract(context.Background(), ExtractRequest{URL: "http://example.com/a", Mode: router.ModeStatic})
		first <- err
	}()

	require.Eventually(t, func() bool {
		static.mu.Lock()
		defer static.mu.Unlock()
		return static.calls == 1
	}, time.Second, time.Millisecond, "first call must reach the fetcher before the second is issued")

	_, secondErr := a.Extract(context.Background(), ExtractRequest{URL: "http://example.com/a", Mode: router.ModeStatic})
	var appErr *apperr.Error
	require.ErrorAs(t, secondErr, &appErr)
	assert.Equal(t, apperr.KindAlreadyExists, appErr.Kind)

	close(static.release)
	require.NoError(t, <-first)
}
