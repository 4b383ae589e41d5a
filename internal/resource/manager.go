package resource

import (
	"context"
	"net/url"
	"sync"
	"time"
)

// Manager owns one HostBucket per host and a background sweeper that
// evicts buckets idle past idleTTL, grounded on the teacher's pool
// lifecycle pattern (internal/utils/python_pool.go's factory/close-all
// shape, generalized to a map instead of a channel).
type Manager struct {
	mu      sync.RWMutex
	buckets map[string]*HostBucket

	rps, burst, jitter float64
	idleTTL            time.Duration
	outboundTimeout    time.Duration

	stopCh chan struct{}
	once   sync.Once
}

// NewManager starts the sweeper goroutine immediately.
func NewManager(rps, burst, jitter float64, idleTTL, sweepInterval, outboundTimeout time.Duration) *Manager {
	m := &Manager{
		buckets:         make(map[string]*HostBucket),
		rps:             rps,
		burst:           burst,
		jitter:          jitter,
		idleTTL:         idleTTL,
		outboundTimeout: outboundTimeout,
		stopCh:          make(chan struct{}),
	}
	go m.sweepLoop(sweepInterval)
	return m
}

func (m *Manager) sweepLoop(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for host, bucket := range m.buckets {
		if bucket.IdleSince(now) > m.idleTTL {
			delete(m.buckets, host)
		}
	}
}

// Close stops the sweeper goroutine.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stopCh) })
}

// bucketFor returns the host's bucket, creating it on first use.
func (m *Manager) bucketFor(host string) *HostBucket {
	m.mu.RLock()
	b, ok := m.buckets[host]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buckets[host]; ok {
		return b
	}
	b = NewHostBucket(m.rps, m.burst, m.jitter)
	m.buckets[host] = b
	return b
}

// HostOf extracts the bucketing key (the URL's host, including any port)
// from a target URL.
func HostOf(targetURL string) (string, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

// Acquire obtains a slot on the given host's bucket, sleeping out any
// jitter before returning, or propagating apperr.RateLimited if the
// bucket is exhausted.
func (m *Manager) Acquire(ctx context.Context, host string) error {
	sleep, err := m.bucketFor(host).Acquire()
	if err != nil {
		return err
	}
	if sleep <= 0 {
		return nil
	}
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordFailure feeds a failed call into the host's degradation score.
func (m *Manager) RecordFailure(host string) {
	m.bucketFor(host).RecordFailure()
}

// RecordTimeout feeds a timed-out call into the host's degradation score.
func (m *Manager) RecordTimeout(host string) {
	m.bucketFor(host).RecordTimeout()
}

// DegradationScore reports the host's current degradation score.
func (m *Manager) DegradationScore(host string) float64 {
	return m.bucketFor(host).DegradationScore()
}

// OutboundTimeout returns the configured timeout for outbound calls.
func (m *Manager) OutboundTimeout() time.Duration {
	return m.outboundTimeout
}

// WithOutboundTimeout derives a context bounded by the manager's
// configured outbound-call timeout.
func (m *Manager) WithOutboundTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, m.outboundTimeout)
}

// BucketCount reports the number of live host buckets, used by the
// memory-profile aggregation endpoint.
func (m *Manager) BucketCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buckets)
}
