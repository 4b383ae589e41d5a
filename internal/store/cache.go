// Package store implements the C4 cache and idempotency substrate: a
// content-addressed artifact cache and an at-most-once execution guard,
// each with a Redis-backed and an in-process backend.
package store

import (
	"time"

	"github.com/riptide-dev/riptide/internal/ports"
)

// NewCache builds the configured ports.Cache backend: Redis when cacheType
// is "redis" and a client is supplied, in-process go-cache otherwise.
func NewCache(cacheType string, redisClient RedisClient, namespace string, defaultTTL time.Duration) ports.Cache {
	if cacheType == "redis" && redisClient != nil {
		return NewRedisCache(redisClient, namespace)
	}
	return NewMemoryCache(namespace, defaultTTL)
}

// cacheKey namespaces a raw key the way the teacher's sharded memory cache
// and Redis cache both do, so callers don't have to.
func cacheKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}
