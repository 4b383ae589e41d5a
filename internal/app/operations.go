package app

import (
	"context"
	"time"

	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/riptide-dev/riptide/internal/chunk"
	"github.com/riptide-dev/riptide/internal/resource"
	"github.com/riptide-dev/riptide/internal/router"
	"github.com/riptide-dev/riptide/internal/sessionstore"
)

// RenderRequest is the app-level input for a render-only operation: it
// skips document construction and returns raw HTML, used when a caller
// wants the rendered page (e.g. to drive further chunking) rather than a
// canonical document.
type RenderRequest struct {
	URL       string
	SessionID string
}

// RenderResponse carries the final URL and the rendered HTML.
type RenderResponse struct {
	FinalURL string
	HTML     string
}

// Render runs only the dynamic-render leg of the pipeline (spec §4.2/S5):
// acquire a host rate-limit slot, replay session cookies, render through a
// sandboxed instance (C1) behind the circuit-guarded headless backend, and
// touch the session. Cookies the page sets are not read back into the
// session.
func (a *App) Render(ctx context.Context, req RenderRequest) (RenderResponse, error) {
	host, err := resource.HostOf(req.URL)
	if err != nil {
		return RenderResponse{}, apperr.Wrap(apperr.KindInvalidRequest, "parse url", err)
	}
	if a.Config.RateLimitEnabled {
		if err := a.Resources.Acquire(ctx, host); err != nil {
			return RenderResponse{}, err
		}
	}

	var sess *sessionstore.Session
	var cookies []string
	if req.SessionID != "" {
		sess, err = a.Sessions.Get(req.SessionID)
		if err != nil {
			return RenderResponse{}, err
		}
		for _, c := range sess.Cookies() {
			cookies = append(cookies, c.Name+"="+c.Value)
		}
	}

	breaker := a.Circuits["dynamic"]
	permit, err := breaker.TryCall(ctx)
	if err != nil {
		return RenderResponse{}, err
	}
	if !permit {
		return RenderResponse{}, apperr.CircuitOpen("dynamic")
	}

	res, err := a.SandboxPool.Acquire(ctx)
	if err != nil {
		return RenderResponse{}, err
	}
	defer res.Release()
	inst := res.Item()

	if err := inst.Governor.ChargeFuel(1); err != nil {
		return RenderResponse{}, err
	}
	renderCtx, cancel := inst.Governor.WithEpochDeadline(ctx)
	defer cancel()

	result, err := a.Router.Extract(renderCtx, router.Request{URL: req.URL, Mode: router.ModeDynamic, Cookies: cookies})
	if err != nil {
		a.recordRouterFailure(host, err)
		breaker.OnFailure()
		return RenderResponse{}, err
	}
	breaker.OnSuccess()

	pages := int64(len(result.HTML))/wasmPageBytes + 1
	if err := inst.Governor.ChargeMemory(pages); err != nil {
		return RenderResponse{}, err
	}
	defer inst.Governor.ReleaseMemory(pages)

	if sess != nil {
		sess.Touch()
	}

	return RenderResponse{FinalURL: result.FinalURL, HTML: result.HTML}, nil
}

// ChunkRequest is the app-level input for a chunking operation.
type ChunkRequest struct {
	Content string
	Mode    chunk.Mode
	Params  chunk.Params
}

// Chunk runs the requested chunking strategy over already-extracted
// content (spec §6.2); it performs no network access so it bypasses rate
// limiting and circuits entirely.
func (a *App) Chunk(req ChunkRequest) ([]chunk.Chunk, error) {
	return chunk.Run(req.Mode, req.Content, req.Params)
}

// CreateSession allocates a new named session.
func (a *App) CreateSession(id string) (*sessionstore.Session, error) {
	return a.Sessions.Create(id)
}

// GetSession retrieves a session by id.
func (a *App) GetSession(id string) (*sessionstore.Session, error) {
	return a.Sessions.Get(id)
}

// DestroySession removes a session and its on-disk state.
func (a *App) DestroySession(id string) error {
	return a.Sessions.Destroy(id)
}

// SetCookie upserts one cookie into a session's jar and persists it.
func (a *App) SetCookie(sessionID string, cookie sessionstore.Cookie) error {
	s, err := a.Sessions.Get(sessionID)
	if err != nil {
		return err
	}
	return a.Sessions.PersistCookies(sessionID, append(s.Cookies(), cookie))
}

// CookiesForDomain returns the cookies in a session's jar scoped to domain.
func (a *App) CookiesForDomain(sessionID, domain string) ([]sessionstore.Cookie, error) {
	s, err := a.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	var out []sessionstore.Cookie
	for _, c := range s.Cookies() {
		if c.Domain == domain {
			out = append(out, c)
		}
	}
	return out, nil
}

// DeleteCookie removes a single named cookie scoped to a domain from a
// session's jar.
func (a *App) DeleteCookie(sessionID, domain, name string) error {
	s, err := a.Sessions.Get(sessionID)
	if err != nil {
		return err
	}
	kept := s.Cookies()[:0]
	for _, c := range s.Cookies() {
		if c.Domain == domain && c.Name == name {
			continue
		}
		kept = append(kept, c)
	}
	s.SetCookies(kept)
	return a.Sessions.PersistCookies(sessionID, kept)
}

// MemoryProfile aggregates a point-in-time snapshot of every pooled
// resource's size, used by the /memory/profile endpoint (spec §6.5).
type MemoryProfile struct {
	Timestamp       time.Time            `json:"timestamp"`
	SandboxPool     SandboxPoolProfile   `json:"sandbox_pool"`
	ActiveSessions  int                  `json:"active_sessions"`
	HostBucketCount int                  `json:"host_bucket_count"`
	Circuits        map[string]string    `json:"circuits"`
}

// SandboxPoolProfile summarizes the extractor sandbox pool's lifetime
// counters.
type SandboxPoolProfile struct {
	MaxSize  int   `json:"max_size"`
	Acquired int64 `json:"acquired"`
	Released int64 `json:"released"`
	Recycled int64 `json:"recycled"`
}

// MemoryProfile snapshots every pooled/bounded resource in the process.
func (a *App) MemoryProfile() MemoryProfile {
	stats := a.SandboxPool.Stats()
	circuits := make(map[string]string, len(a.Circuits))
	for name, b := range a.Circuits {
		circuits[name] = b.Stats().State
	}
	return MemoryProfile{
		Timestamp: time.Now(),
		SandboxPool: SandboxPoolProfile{
			MaxSize:  stats.MaxSize,
			Acquired: stats.Acquired,
			Released: stats.Released,
			Recycled: stats.Recycled,
		},
		ActiveSessions:  a.Sessions.Count(),
		HostBucketCount: a.Resources.BucketCount(),
		Circuits:        circuits,
	}
}
