// Package config loads and validates the extraction engine's configuration
// from a .env file and the process environment, following the teacher's
// load-then-validate pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable named in spec §5/§6.6.
type Config struct {
	// HTTP surface
	Port string

	// C1 — sandboxed extractor pool
	WasmMaxPoolSize        int
	WasmInitialPoolSize    int
	WasmMemoryLimitMB      int
	WasmMemoryLimitPages   int
	WasmEnableSIMD         bool
	WasmEnableAOTCache     bool
	WasmColdStartTargetMS  int
	WasmFuelUnits          int64
	WasmEpochDeadline      time.Duration
	WasmStackCapBytes      int
	PoolAcquireTimeout     time.Duration
	PoolHealthProbeTimeout time.Duration

	// C2 — render router
	HeadlessURL      string
	RenderTimeout    time.Duration
	RenderBackend    string // "rod" | "chromedp"
	SearchTimeout    time.Duration
	StaticFetchLimit int64

	// C3 — resource manager
	RateLimitEnabled    bool
	RequestsPerSecond   float64
	BurstCapacity       float64
	JitterFactor        float64
	HostBucketIdleTTL   time.Duration
	HostSweepInterval   time.Duration
	OutboundCallTimeout time.Duration

	// C4 — cache & idempotency
	KVURL             string
	CacheType         string // "redis" | "memory"
	CacheNamespace    string
	CacheVersion      string
	ContentCacheTTL   time.Duration
	SearchCacheTTL    time.Duration
	IdempotencyTTL    time.Duration
	IdempotencyKeyVer string

	// C5 — circuit breaker
	CircuitFailureThreshold    int
	CircuitRecoveryTimeout     time.Duration
	CircuitHalfOpenMaxRequests int
	CircuitSuccessRateThresh   float64
	CircuitFailureWindow       time.Duration

	// C6 — session store
	SessionTTL               time.Duration
	SessionCleanupInterval   time.Duration
	MaxSessions              int
	SessionCookieSuffixMatch bool
	OutputDir                string
}

// Load reads configuration from a .env file (best effort) and the
// environment, then validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Info: Could not load .env file: %v (this is ok if using environment variables)\n", err)
	}

	cfg := &Config{
		Port: getEnv("PORT", "8080"),

		WasmMaxPoolSize:        getEnvInt("RIPTIDE_WASM_MAX_POOL_SIZE", 8),
		WasmInitialPoolSize:    getEnvInt("RIPTIDE_WASM_INITIAL_POOL_SIZE", 2),
		WasmMemoryLimitMB:      getEnvInt("RIPTIDE_WASM_MEMORY_LIMIT_MB", 128),
		WasmMemoryLimitPages:   getEnvInt("RIPTIDE_WASM_MEMORY_LIMIT_PAGES", 2048),
		WasmEnableSIMD:         getEnvBool("RIPTIDE_WASM_ENABLE_SIMD", false),
		WasmEnableAOTCache:     getEnvBool("RIPTIDE_WASM_ENABLE_AOT_CACHE", true),
		WasmColdStartTargetMS:  getEnvInt("RIPTIDE_WASM_COLD_START_TARGET_MS", 100),
		WasmFuelUnits:          int64(getEnvInt("RIPTIDE_WASM_FUEL_UNITS", 1_000_000)),
		WasmEpochDeadline:      getEnvDuration("RIPTIDE_WASM_EPOCH_DEADLINE", 30*time.Second),
		WasmStackCapBytes:      getEnvInt("RIPTIDE_WASM_STACK_CAP_BYTES", 256*1024),
		PoolAcquireTimeout:     getEnvDuration("RIPTIDE_POOL_ACQUIRE_TIMEOUT", 5*time.Second),
		PoolHealthProbeTimeout: getEnvDuration("RIPTIDE_POOL_HEALTH_PROBE_TIMEOUT", 100*time.Millisecond),

		HeadlessURL:      getEnv("RIPTIDE_HEADLESS_URL", "http://localhost:9222"),
		RenderTimeout:    getEnvDuration("RIPTIDE_RENDER_TIMEOUT", 3*time.Second),
		RenderBackend:    getEnv("RIPTIDE_RENDER_BACKEND", "rod"),
		SearchTimeout:    getEnvDuration("SEARCH_TIMEOUT", 10*time.Second),
		StaticFetchLimit: int64(getEnvInt("RIPTIDE_STATIC_FETCH_LIMIT_BYTES", 20*1024*1024)),

		RateLimitEnabled:    getEnvBool("RIPTIDE_RATE_LIMIT_ENABLED", true),
		RequestsPerSecond:   getEnvFloat("RIPTIDE_HOST_RPS", 2.0),
		BurstCapacity:       getEnvFloat("RIPTIDE_HOST_BURST", 5.0),
		JitterFactor:        getEnvFloat("RIPTIDE_HOST_JITTER_FACTOR", 0.1),
		HostBucketIdleTTL:   getEnvDuration("RIPTIDE_HOST_BUCKET_IDLE_TTL", time.Hour),
		HostSweepInterval:   getEnvDuration("RIPTIDE_HOST_SWEEP_INTERVAL", 5*time.Minute),
		OutboundCallTimeout: getEnvDuration("RIPTIDE_OUTBOUND_TIMEOUT", 30*time.Second),

		KVURL:             getEnv("RIPTIDE_KV_URL", ""),
		CacheType:         getEnv("RIPTIDE_CACHE_TYPE", "memory"),
		CacheNamespace:    getEnv("RIPTIDE_CACHE_NAMESPACE", ""),
		CacheVersion:      getEnv("RIPTIDE_CACHE_VERSION", "v1"),
		ContentCacheTTL:   getEnvDuration("RIPTIDE_CONTENT_CACHE_TTL", 10*time.Minute),
		SearchCacheTTL:    getEnvDuration("RIPTIDE_SEARCH_CACHE_TTL", 10*time.Minute),
		IdempotencyTTL:    getEnvDuration("RIPTIDE_IDEMPOTENCY_TTL", time.Hour),
		IdempotencyKeyVer: getEnv("RIPTIDE_IDEMPOTENCY_KEY_VERSION", "v1"),

		CircuitFailureThreshold:    getEnvInt("RIPTIDE_CIRCUIT_FAILURE_THRESHOLD", 5),
		CircuitRecoveryTimeout:     getEnvDuration("RIPTIDE_CIRCUIT_RECOVERY_TIMEOUT", 30*time.Second),
		CircuitHalfOpenMaxRequests: getEnvInt("RIPTIDE_CIRCUIT_HALF_OPEN_MAX_REQUESTS", 3),
		CircuitSuccessRateThresh:   getEnvFloat("RIPTIDE_CIRCUIT_SUCCESS_RATE_THRESHOLD", 0.7),
		CircuitFailureWindow:       getEnvDuration("RIPTIDE_CIRCUIT_FAILURE_WINDOW", 60*time.Second),

		SessionTTL:               getEnvDuration("RIPTIDE_SESSION_TTL", time.Hour),
		SessionCleanupInterval:   getEnvDuration("RIPTIDE_SESSION_CLEANUP_INTERVAL", 5*time.Minute),
		MaxSessions:              getEnvInt("RIPTIDE_MAX_SESSIONS", 1000),
		SessionCookieSuffixMatch: getEnvBool("RIPTIDE_SESSION_COOKIE_SUFFIX_MATCH", false),
		OutputDir:                getEnv("RIPTIDE_OUTPUT_DIR", "./data"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks invariant-bearing configuration values.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port number: %s", c.Port)
	}

	validBackends := map[string]bool{"rod": true, "chromedp": true}
	if !validBackends[c.RenderBackend] {
		return fmt.Errorf("invalid render backend: %s (must be 'rod' or 'chromedp')", c.RenderBackend)
	}

	validCache := map[string]bool{"redis": true, "memory": true}
	if !validCache[c.CacheType] {
		return fmt.Errorf("invalid cache type: %s (must be 'redis' or 'memory')", c.CacheType)
	}
	if c.CacheType == "redis" && c.KVURL == "" {
		fmt.Println("Warning: RIPTIDE_CACHE_TYPE=redis but RIPTIDE_KV_URL not set - falling back at wiring time")
	}

	if c.WasmInitialPoolSize > c.WasmMaxPoolSize {
		return fmt.Errorf("initial pool size (%d) exceeds max pool size (%d)", c.WasmInitialPoolSize, c.WasmMaxPoolSize)
	}

	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive: %f", c.RequestsPerSecond)
	}
	if c.BurstCapacity < c.RequestsPerSecond {
		return fmt.Errorf("burst capacity (%f) must be >= requests per second (%f)", c.BurstCapacity, c.RequestsPerSecond)
	}

	if c.CircuitSuccessRateThresh < 0 || c.CircuitSuccessRateThresh > 1 {
		return fmt.Errorf("circuit success rate threshold must be in [0,1]: %f", c.CircuitSuccessRateThresh)
	}

	return nil
}

// GetPort returns the port as an integer.
func (c *Config) GetPort() int {
	port, _ := strconv.Atoi(c.Port)
	return port
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if strings.HasSuffix(value, "s") || strings.HasSuffix(value, "ms") || strings.HasSuffix(value, "m") || strings.HasSuffix(value, "h") {
			if d, err := time.ParseDuration(value); err == nil {
				return d
			}
		}
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
