// Package resource implements the per-host resource manager (C3): a token
// bucket per host with jittered backoff, a degradation score, and a
// background sweeper that evicts idle buckets.
package resource

import (
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/riptide-dev/riptide/internal/apperr"
)

// HostBucket is a single host's token bucket, implementing the 5-step
// algorithm of spec §4.3.1 (refill, cap at burst, consume on success,
// jittered sleep, or fail fast with a retry-after hint) on top of
// golang.org/x/time/rate's Limiter rather than a hand-rolled refill loop.
type HostBucket struct {
	mu sync.Mutex

	limiter *rate.Limiter
	rps     float64
	jitter  float64

	lastUsed time.Time
	failures int
	timeouts int
	requests int
}

// NewHostBucket creates a bucket starting fully topped up.
func NewHostBucket(rps, burst, jitterFactor float64) *HostBucket {
	burstN := int(burst + 0.5)
	if burstN < 1 {
		burstN = 1
	}
	return &HostBucket{
		limiter:  rate.NewLimiter(rate.Limit(rps), burstN),
		rps:      rps,
		jitter:   jitterFactor,
		lastUsed: time.Now(),
	}
}

// Acquire blocks (via the returned sleep duration) or fails fast with a
// RateLimited error when the bucket is exhausted; it never sleeps inside
// the lock, so concurrent hosts never contend on each other's backoff.
func (b *HostBucket) Acquire() (sleep time.Duration, err error) {
	now := time.Now()

	b.mu.Lock()
	b.lastUsed = now
	b.requests++
	allowed := b.limiter.AllowN(now, 1)
	rps := b.rps
	b.mu.Unlock()

	if !allowed {
		return 0, apperr.RateLimited(b.retryAfter(now))
	}

	// Jitter is drawn from [0, jitter_factor * 1/rps] (spec §4.3.1 step 4),
	// not a fixed one-second base, so a high-rps host gets proportionally
	// smaller jitter than a low-rps one.
	period := time.Second
	if rps > 0 {
		period = time.Duration(float64(time.Second) / rps)
	}
	jitterSleep := time.Duration(rand.Float64() * b.jitter * float64(period))
	return jitterSleep, nil
}

// retryAfter estimates the wait until the next token is available without
// consuming one, by reserving and immediately cancelling a reservation.
func (b *HostBucket) retryAfter(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	r := b.limiter.ReserveN(now, 1)
	defer r.CancelAt(now)
	return r.DelayFrom(now)
}

// RecordFailure feeds the degradation score (spec §4.3.2): a host that
// fails more often degrades faster than one under simple load.
func (b *HostBucket) RecordFailure() {
	b.mu.Lock()
	b.failures++
	b.mu.Unlock()
}

// RecordTimeout feeds the degradation score's timeout-rate term (spec
// §4.3.2/§4.3.3): a host whose calls keep timing out degrades faster than
// one that merely fails outright.
func (b *HostBucket) RecordTimeout() {
	b.mu.Lock()
	b.timeouts++
	b.mu.Unlock()
}

// DegradationScore returns a 0.0 (healthy) to 1.0 (fully degraded) score,
// implementing spec §4.3.3's formula verbatim: a weighted blend of the
// timeout rate and the failure rate observed for this host.
func (b *HostBucket) DegradationScore() float64 {
	b.mu.Lock()
	requests := b.requests
	failures := b.failures
	timeouts := b.timeouts
	b.mu.Unlock()

	if requests == 0 {
		return 0
	}

	timeoutRate := float64(timeouts) / float64(requests)
	failureRate := float64(failures) / float64(requests)

	score := 0.6*timeoutRate + 0.4*failureRate
	if score > 1 {
		score = 1
	}
	return score
}

// IdleSince reports how long it has been since this bucket was last used,
// for the sweeper's eviction decision.
func (b *HostBucket) IdleSince(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastUsed)
}
