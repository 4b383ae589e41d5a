package store

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is an in-process ports.Cache backed by go-cache, namespaced
// the same way the teacher's sharded memory cache namespaces keys.
type MemoryCache struct {
	namespace  string
	defaultTTL time.Duration
	c          *gocache.Cache
}

// NewMemoryCache builds a MemoryCache with the given default TTL used when
// callers pass a zero TTL to Set.
func NewMemoryCache(namespace string, defaultTTL time.Duration) *MemoryCache {
	cleanupInterval := defaultTTL
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &MemoryCache{
		namespace:  namespace,
		defaultTTL: defaultTTL,
		c:          gocache.New(defaultTTL, cleanupInterval),
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(cacheKey(m.namespace, key))
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.c.Set(cacheKey(m.namespace, key), value, ttl)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.c.Delete(cacheKey(m.namespace, key))
	return nil
}

// lockTable is a sync.Map of per-key *sync.Mutex, grounded on the pandora
// exchange idempotency middleware's per-key locking pattern.
type lockTable struct {
	locks sync.Map // string -> *sync.Mutex
}

func (lt *lockTable) lockFor(key string) *sync.Mutex {
	actual, _ := lt.locks.LoadOrStore(key, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
