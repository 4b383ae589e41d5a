package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/riptide-dev/riptide/internal/app"
	"github.com/riptide-dev/riptide/internal/circuit"
	"github.com/riptide-dev/riptide/internal/config"
	"github.com/riptide-dev/riptide/internal/ports"
	"github.com/riptide-dev/riptide/internal/resource"
	"github.com/riptide-dev/riptide/internal/router"
	"github.com/riptide-dev/riptide/internal/sandbox"
	"github.com/riptide-dev/riptide/internal/sessionstore"
	"github.com/riptide-dev/riptide/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatic struct{ body string }

func (f *fakeStatic) Fetch(_ context.Context, targetURL string, _ ports.FetchOptions) (ports.FetchResult, error) {
	return ports.FetchResult{FinalURL: targetURL, Body: []byte(f.body), ContentType: "text/html", StatusCode: 200}, nil
}

type fakeSessionStorage struct{ records map[string][]byte }

func newFakeSessionStorage() *fakeSessionStorage {
	return &fakeSessionStorage{records: make(map[string][]byte)}
}
func (f *fakeSessionStorage) Save(id string, r []byte) error { f.records[id] = r; return nil }
func (f *fakeSessionStorage) Load(id string) ([]byte, bool, error) {
	r, ok := f.records[id]
	return r, ok, nil
}
func (f *fakeSessionStorage) Delete(id string) error { delete(f.records, id); return nil }
func (f *fakeSessionStorage) List() ([]string, error) {
	ids := make([]string, 0, len(f.records))
	for id := range f.records {
		ids = append(ids, id)
	}
	return ids, nil
}

func testHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()
	sessions, err := sessionstore.NewManager(newFakeSessionStorage(), dir, time.Hour, time.Hour, 10)
	require.NoError(t, err)
	t.Cleanup(sessions.Close)

	pool, err := sandbox.NewPool(context.Background(), 2, 2, 2048, 1_000_000, time.Second, 50*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	idempotency := store.NewMemoryIdempotencyStore(time.Minute)
	t.Cleanup(idempotency.Close)

	resources := resource.NewManager(100, 10, 0, time.Hour, time.Hour, 30*time.Second)
	t.Cleanup(resources.Close)

	application := &app.App{
		Config:      &config.Config{CacheNamespace: "ns", CacheVersion: "v1", ContentCacheTTL: time.Minute, IdempotencyTTL: time.Minute},
		Cache:       store.NewMemoryCache("ns", time.Minute),
		Idempotency: idempotency,
		Resources:   resources,
		Circuits: map[string]*circuit.Breaker{
			"static":  circuit.New(circuit.DefaultConfig("static")),
			"dynamic": circuit.New(circuit.DefaultConfig("dynamic")),
			"pdf":     circuit.New(circuit.DefaultConfig("pdf")),
		},
		SandboxPool: pool,
		Router:      router.New(&fakeStatic{body: "<html><body><p>" + rep("word ", 100) + "</p></body></html>"}, nil, nil),
		Sessions:    sessions,
	}
	return NewHandler(application)
}

func rep(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func TestHandleChunk_SplitsContentIntoFixedChunks(t *testing.T) {
	h := testHandler(t)
	mux := http.NewServeMux()
	h.Routes(mux)

	body, _ := json.Marshal(map[string]interface{}{
		"content":        rep("word ", 25),
		"mode":           "fixed",
		"chunk_size":     10,
		"overlap_size":   2,
		"min_chunk_size": 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/content/chunk", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chunkResponsePayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Chunks, 3)
}

func TestHandleExtract_ReturnsDocument(t *testing.T) {
	h := testHandler(t)
	mux := http.NewServeMux()
	h.Routes(mux)

	body, _ := json.Marshal(map[string]interface{}{
		"url":  "http://example.com/a",
		"mode": "static",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/extract", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp extractResponsePayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Document)
}

func TestSessionLifecycle_CreateSetCookieDelete(t *testing.T) {
	h := testHandler(t)
	mux := http.NewServeMux()
	h.Routes(mux)

	createBody, _ := json.Marshal(map[string]string{"id": "sess-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewReader(createBody))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	cookieBody, _ := json.Marshal(map[string]string{"name": "auth", "value": "tok", "domain": "example.com"})
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/sess-1/cookies", bytes.NewReader(cookieBody))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess-1/cookies/example.com", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var cookies []sessionstore.Cookie
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cookies))
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth", cookies[0].Name)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/sess-1", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthz_ReturnsHealthy(t *testing.T) {
	h := testHandler(t)
	mux := http.NewServeMux()
	h.Routes(mux)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
