// Package ports declares the abstract capability sets (trait-like
// interfaces) that the orchestration engine programs against, so that
// concrete backends — Redis vs in-process cache, rod vs chromedp render,
// bbolt vs in-memory sessions — are swappable without touching callers.
package ports

import (
	"context"
	"time"
)

// Cache is the content-addressed artifact cache (C4).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore guards at-most-once in-flight operations (C4).
type IdempotencyStore interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error)
	Release(ctx context.Context, key, token string) error
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
	StoreResult(ctx context.Context, key string, result []byte, ttl time.Duration) error
	GetResult(ctx context.Context, key string) ([]byte, bool, error)
	// PublishIfLockHeld stores result only if token still owns key, atomically.
	PublishIfLockHeld(ctx context.Context, key, token string, result []byte, ttl time.Duration) (bool, error)
}

// SessionStorage persists session and cookie state (C6).
type SessionStorage interface {
	Save(id string, record []byte) error
	Load(id string) ([]byte, bool, error)
	Delete(id string) error
	List() ([]string, error)
}

// CircuitBreaker protects calls to an external service (C5).
type CircuitBreaker interface {
	TryCall(ctx context.Context) (permit bool, err error)
	OnSuccess()
	OnFailure()
	Stats() CircuitStats
	Reset()
}

// CircuitStats mirrors spec §3's CircuitBreakerStats.
type CircuitStats struct {
	State              string
	TotalRequests      uint64
	SuccessfulRequests uint64
	FailedRequests     uint64
	CircuitOpens       uint64
	CurrentFailures    int
	SuccessRate        float64
}

// Pool is a generic capability for acquiring and releasing a pooled
// resource of type T (C1).
type Pool[T any] interface {
	Acquire(ctx context.Context) (Resource[T], error)
	Release(item T)
}

// Resource is an RAII handle over a pooled item: exactly one live handle
// exists per slot, and Release returns the slot.
type Resource[T any] interface {
	Item() T
	Release()
	// Into surrenders the handle's responsibility to the caller, who must
	// call Release manually or leak the slot.
	Into() T
}

// LlmProvider is the capability set for LLM-backed operations (out of the
// core's scope beyond this interface boundary).
type LlmProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// StaticFetcher performs a plain HTTP GET/render-free fetch (C2).
type StaticFetcher interface {
	Fetch(ctx context.Context, targetURL string, opts FetchOptions) (FetchResult, error)
}

// FetchOptions carries per-request static fetch parameters.
type FetchOptions struct {
	Cookies   []string
	UserAgent string
	Stealth   bool
}

// FetchResult is what a static fetch returns to the router.
type FetchResult struct {
	FinalURL    string
	Body        []byte
	ContentType string
	StatusCode  int
}

// DynamicRenderer drives a headless browser render (C2).
type DynamicRenderer interface {
	HealthCheck(ctx context.Context) error
	Render(ctx context.Context, targetURL string, opts RenderOptions) (RenderResult, error)
	Name() string
}

// RenderOptions carries per-request dynamic render parameters.
type RenderOptions struct {
	Cookies     []string
	UserDataDir string
	Timeout     time.Duration
}

// RenderResult is what a dynamic render returns to the router.
type RenderResult struct {
	FinalURL string
	HTML     string
}

// PDFFetcher downloads and validates PDF bytes (C2).
type PDFFetcher interface {
	Fetch(ctx context.Context, targetURL string) (PDFResult, error)
}

// PDFResult is what a PDF fetch returns to the router.
type PDFResult struct {
	FinalURL string
	Bytes    []byte
}
