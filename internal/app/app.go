// Package app is the composition root: it wires every component (C1-C8)
// into the operations the HTTP handler layer calls, grounded on the
// teacher's main.go wiring of browser pool, cache, and dispatcher.
package app

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/riptide-dev/riptide/internal/circuit"
	"github.com/riptide-dev/riptide/internal/config"
	"github.com/riptide-dev/riptide/internal/document"
	"github.com/riptide-dev/riptide/internal/fingerprint"
	"github.com/riptide-dev/riptide/internal/logger"
	"github.com/riptide-dev/riptide/internal/ports"
	"github.com/riptide-dev/riptide/internal/resource"
	"github.com/riptide-dev/riptide/internal/router"
	"github.com/riptide-dev/riptide/internal/sandbox"
	"github.com/riptide-dev/riptide/internal/sessionstore"
	"github.com/riptide-dev/riptide/internal/store"
)

// App holds every wired component and exposes the operations the API
// layer drives.
type App struct {
	Config *config.Config

	Cache       ports.Cache
	Idempotency ports.IdempotencyStore
	Resources   *resource.Manager
	Circuits    map[string]*circuit.Breaker
	Sessions    *sessionstore.Manager
	SandboxPool *sandbox.Pool
	Router      *router.Router

	httpClient   *http.Client
	sessionStore *sessionstore.BboltStore
}

// New builds the full dependency graph from configuration, following the
// leaf-first order spec §2 names: C7/C8 are pure types used throughout;
// C1 (sandbox), C4 (store), C3 (resource), C5 (circuit), C6 (sessions)
// come up independently; C2 (router) is wired last since it depends on
// C3's outbound timeout and C6's cookie jars.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	httpClient := &http.Client{
		Timeout: cfg.OutboundCallTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}

	var redisClient store.RedisClient
	if cfg.CacheType == "redis" && cfg.KVURL != "" {
		opt, err := goredis.ParseURL(cfg.KVURL)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "parse redis url", err)
		}
		redisClient = goredis.NewClient(opt)
	}

	cache := store.NewCache(cfg.CacheType, redisClient, cfg.CacheNamespace, cfg.ContentCacheTTL)

	var idempotency ports.IdempotencyStore
	if redisClient != nil {
		idempotency = store.NewRedisIdempotencyStore(redisClient, cfg.CacheNamespace)
	} else {
		idempotency = store.NewMemoryIdempotencyStore(time.Minute)
	}

	resources := resource.NewManager(
		cfg.RequestsPerSecond, cfg.BurstCapacity, cfg.JitterFactor,
		cfg.HostBucketIdleTTL, cfg.HostSweepInterval, cfg.OutboundCallTimeout,
	)

	sandboxPool, err := sandbox.NewPool(
		ctx, cfg.WasmMaxPoolSize, cfg.WasmInitialPoolSize, cfg.WasmMemoryLimitPages,
		cfg.WasmFuelUnits, cfg.WasmEpochDeadline, cfg.PoolAcquireTimeout,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "build sandbox pool", err)
	}

	bboltPath := filepath.Join(cfg.OutputDir, "sessions.db")
	bboltStore, err := sessionstore.OpenBboltStore(bboltPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, "open session store", err)
	}

	sessions, err := sessionstore.NewManager(
		bboltStore, cfg.OutputDir, cfg.SessionTTL, cfg.SessionCleanupInterval, cfg.MaxSessions,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "build session manager", err)
	}

	staticFetcher := router.NewCollyFetcher(httpClient, cfg.StaticFetchLimit)
	pdfFetcher := router.NewPDFFetcher(httpClient, cfg.StaticFetchLimit)

	var dynamicRenderer ports.DynamicRenderer
	switch cfg.RenderBackend {
	case "chromedp":
		dynamicRenderer = router.NewChromedpRenderer(context.Background(), cfg.RenderTimeout)
	default:
		browser, err := router.ConnectRemoteBrowser(cfg.HeadlessURL)
		if err != nil {
			logger.Warn("app: failed to connect to headless browser, dynamic render degraded", "error", err)
		} else {
			dynamicRenderer = router.NewRodRenderer(browser, cfg.RenderTimeout)
		}
	}

	rtr := router.New(staticFetcher, dynamicRenderer, pdfFetcher)

	circuits := map[string]*circuit.Breaker{
		"static":  circuit.New(circuitConfig(cfg, "static")),
		"dynamic": circuit.New(circuitConfig(cfg, "dynamic")),
		"pdf":     circuit.New(circuitConfig(cfg, "pdf")),
	}

	return &App{
		Config:      cfg,
		Cache:       cache,
		Idempotency: idempotency,
		Resources:   resources,
		Circuits:    circuits,
		Sessions:     sessions,
		SandboxPool:  sandboxPool,
		Router:       rtr,
		httpClient:   httpClient,
		sessionStore: bboltStore,
	}, nil
}

func circuitConfig(cfg *config.Config, name string) circuit.Config {
	return circuit.Config{
		Name:                 name,
		FailureThreshold:     cfg.CircuitFailureThreshold,
		RecoveryTimeout:      cfg.CircuitRecoveryTimeout,
		HalfOpenMaxRequests:  cfg.CircuitHalfOpenMaxRequests,
		SuccessRateThreshold: cfg.CircuitSuccessRateThresh,
		FailureWindow:        cfg.CircuitFailureWindow,
	}
}

// Close releases every long-lived resource the app holds.
func (a *App) Close() {
	a.Resources.Close()
	a.Sessions.Close()
	a.SandboxPool.Close()
	if mis, ok := a.Idempotency.(*store.MemoryIdempotencyStore); ok {
		mis.Close()
	}
	if a.sessionStore != nil {
		if err := a.sessionStore.Close(); err != nil {
			logger.Warn("app: failed to close session store", "error", err)
		}
	}
}

// ExtractRequest is the app-level input for an extraction operation.
type ExtractRequest struct {
	URL       string
	Mode      router.Mode
	SessionID string
	Options   fingerprint.Options
}

// ExtractResponse wraps the canonical document plus cache/fallback
// metadata the API layer surfaces.
type ExtractResponse struct {
	Doc       document.ExtractedDoc
	CacheHit  bool
	UsedMode  router.Mode
	Fallbacks []router.Mode
}

// Extract runs the full extraction pipeline: cache lookup, at-most-once
// idempotency lock, per-host rate limiting, circuit-guarded routing,
// session cookie replay, sandboxed document construction, and cache/result
// publication — the S1/S4/S5/S6 scenario path (spec §2/§5).
func (a *App) Extract(ctx context.Context, req ExtractRequest) (ExtractResponse, error) {
	key := fingerprint.Key(a.Config.CacheNamespace, a.Config.CacheVersion, "extract", req.URL, req.Options)

	if raw, hit, err := a.Cache.Get(ctx, key); err == nil && hit {
		doc, decodeErr := decodeDoc(raw)
		if decodeErr == nil {
			return ExtractResponse{Doc: doc, CacheHit: true}, nil
		}
		logger.Warn("app: discarding unreadable cache entry", "key", key, "error", decodeErr)
	}

	lock, err := a.acquireIdempotency(ctx, key)
	if err != nil {
		return ExtractResponse{}, err
	}
	if lock.alreadyPublished {
		return ExtractResponse{Doc: lock.doc, CacheHit: true}, nil
	}
	if !lock.held {
		return ExtractResponse{}, apperr.AlreadyExists("extraction for %q is already in flight", req.URL)
	}
	defer lock.releaseIfUnpublished(ctx, a.Idempotency)

	host, err := resource.HostOf(req.URL)
	if err != nil {
		return ExtractResponse{}, apperr.Wrap(apperr.KindInvalidRequest, "parse url", err)
	}
	if a.Config.RateLimitEnabled {
		if err := a.Resources.Acquire(ctx, host); err != nil {
			return ExtractResponse{}, err
		}
	}

	cookies, err := a.sessionCookies(req.SessionID)
	if err != nil {
		return ExtractResponse{}, err
	}

	breaker := a.circuitFor(req.Mode)
	permit, err := breaker.TryCall(ctx)
	if err != nil {
		return ExtractResponse{}, err
	}
	if !permit {
		return ExtractResponse{}, apperr.CircuitOpen(string(req.Mode))
	}

	result, extractErr := a.Router.Extract(ctx, router.Request{URL: req.URL, Mode: req.Mode, Cookies: cookies})
	if extractErr != nil {
		a.recordRouterFailure(host, extractErr)
		breaker.OnFailure()
		return ExtractResponse{}, extractErr
	}
	breaker.OnSuccess()

	raw, err := a.extractInSandbox(ctx, result)
	if err != nil {
		a.recordRouterFailure(host, err)
		return ExtractResponse{}, err
	}

	doc, err := document.Build(raw)
	if err != nil {
		return ExtractResponse{}, apperr.Wrap(apperr.KindInternal, "build document", err)
	}

	encoded, encodeErr := encodeDoc(doc)
	if encodeErr != nil {
		return ExtractResponse{Doc: doc, UsedMode: result.UsedMode, Fallbacks: result.Fallbacks}, nil
	}
	if err := a.Cache.Set(ctx, key, encoded, a.Config.ContentCacheTTL); err != nil {
		logger.Warn("app: failed to populate cache", "key", key, "error", err)
	}
	lock.publish(ctx, a.Idempotency, encoded, a.Config.IdempotencyTTL)

	return ExtractResponse{Doc: doc, UsedMode: result.UsedMode, Fallbacks: result.Fallbacks}, nil
}

// recordRouterFailure feeds a failed extraction back into the host's
// degradation score (spec §4.3.2/§4.3.3), distinguishing a timeout from an
// ordinary failure so DegradationScore's weighted formula sees both terms.
func (a *App) recordRouterFailure(host string, err error) {
	a.Resources.RecordFailure(host)
	if apperr.KindOf(err) == apperr.KindTimeout {
		a.Resources.RecordTimeout(host)
	}
}

// idempotencyLock tracks one Extract call's lease over the C4 idempotency
// store across the acquire -> compute -> publish sequence.
type idempotencyLock struct {
	held             bool
	key              string
	token            string
	alreadyPublished bool
	doc              document.ExtractedDoc
	published        bool
}

// acquireIdempotency implements the at-most-once guard of spec §2/§5: the
// first caller for a key acquires the lease and proceeds; a concurrent
// caller for the same key either reads the first caller's already-published
// result or learns the computation is in flight (property 8's "one
// acquires, others receive AlreadyExists"). A nil store (disabled C4)
// degrades to "always held" so the pipeline still runs.
func (a *App) acquireIdempotency(ctx context.Context, key string) (idempotencyLock, error) {
	if a.Idempotency == nil {
		return idempotencyLock{held: true}, nil
	}

	token, acquired, err := a.Idempotency.TryAcquire(ctx, key, a.Config.IdempotencyTTL)
	if err != nil {
		return idempotencyLock{}, apperr.Wrap(apperr.KindInternal, "acquire idempotency lock", err)
	}
	if acquired {
		return idempotencyLock{held: true, key: key, token: token}, nil
	}

	if raw, ok, err := a.Idempotency.GetResult(ctx, key); err == nil && ok {
		if doc, decodeErr := decodeDoc(raw); decodeErr == nil {
			return idempotencyLock{alreadyPublished: true, doc: doc}, nil
		}
	}
	return idempotencyLock{}, nil
}

// publish stores result under the lease's key while the lease is still
// held, then leaves it to expire naturally (rather than releasing
// immediately) so other waiters can read it via GetResult for the
// remainder of its TTL.
func (l *idempotencyLock) publish(ctx context.Context, store ports.IdempotencyStore, result []byte, ttl time.Duration) {
	if store == nil || !l.held {
		return
	}
	if ok, err := store.PublishIfLockHeld(ctx, l.key, l.token, result, ttl); err == nil && ok {
		l.published = true
	}
}

// releaseIfUnpublished frees the lease immediately on any path that didn't
// reach a successful publish (an error return, a cache-bypassing early
// exit), so the next caller for the same key doesn't wait out the full TTL.
func (l *idempotencyLock) releaseIfUnpublished(ctx context.Context, store ports.IdempotencyStore) {
	if store == nil || !l.held || l.published {
		return
	}
	_ = store.Release(ctx, l.key, l.token)
}

// extractInSandbox runs the structural parse of a router.Result through a
// checked-out sandbox instance (C1): the instance's governor is charged for
// the memory and fuel the parse is about to spend, and the parse itself is
// bounded by the instance's epoch deadline, so a pathological document
// can't hold the slot (or the caller) past its budget (spec §2/§4.1).
func (a *App) extractInSandbox(ctx context.Context, result router.Result) (document.Raw, error) {
	res, err := a.SandboxPool.Acquire(ctx)
	if err != nil {
		return document.Raw{}, err
	}
	defer res.Release()
	inst := res.Item()

	contentLen := int64(len(result.HTML) + len(result.PDFBytes))
	pages := contentLen/wasmPageBytes + 1
	if err := inst.Governor.ChargeMemory(pages); err != nil {
		return document.Raw{}, err
	}
	defer inst.Governor.ReleaseMemory(pages)

	if err := inst.Governor.ChargeFuel(contentLen/fuelBytesPerUnit + 1); err != nil {
		return document.Raw{}, err
	}

	extractCtx, cancel := inst.Governor.WithEpochDeadline(ctx)
	defer cancel()

	done := make(chan parseOutcome, 1)
	go func() {
		done <- runExtraction(result)
	}()

	select {
	case o := <-done:
		return o.raw, o.err
	case <-extractCtx.Done():
		return document.Raw{}, apperr.ResourceLimit("epoch")
	}
}

// wasmPageBytes/fuelBytesPerUnit translate raw content size into the
// governor's memory-page and fuel units, a coarse proxy for the real
// per-instruction accounting a wired WASM runtime would give for free (see
// DESIGN.md on why no such runtime exists in this pack).
const (
	wasmPageBytes    = 64 * 1024
	fuelBytesPerUnit = 256
)

// parseOutcome is the result of a sandboxed parse, delivered across the
// epoch-deadline select in extractInSandbox.
type parseOutcome struct {
	raw document.Raw
	err error
}

// runExtraction performs the actual DOM/PDF parse the sandboxed instance
// is governing; it holds no sandbox state itself so the governor above can
// bound it purely by wall-clock deadline.
func runExtraction(result router.Result) parseOutcome {
	if result.PDFBytes != nil {
		text, err := router.ExtractText(result.PDFBytes)
		if err != nil {
			return parseOutcome{err: apperr.WrapPreserve("pdf extraction", err)}
		}
		return parseOutcome{raw: document.Raw{FinalURL: result.FinalURL, Text: text}}
	}

	parsed := router.ParseStructure(result.HTML)
	text := parsed.Text
	if text == "" {
		text = stripTags(result.HTML)
	}
	raw := router.BuildRaw(result.FinalURL, parsed.Title, text, parsed.Links, parsed.Media)
	raw.Byline = parsed.Byline
	raw.Language = parsed.Language
	raw.Categories = parsed.Categories
	return parseOutcome{raw: raw}
}

func (a *App) sessionCookies(sessionID string) ([]string, error) {
	if sessionID == "" {
		return nil, nil
	}
	s, err := a.Sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	cookies := s.Cookies()
	out := make([]string, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, c.Name+"="+c.Value)
	}
	return out, nil
}

func (a *App) circuitFor(mode router.Mode) *circuit.Breaker {
	switch mode {
	case router.ModeDynamic:
		return a.Circuits["dynamic"]
	case router.ModePDF:
		return a.Circuits["pdf"]
	default:
		return a.Circuits["static"]
	}
}
