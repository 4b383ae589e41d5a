// Package circuit implements the circuit breaker state machine (C5):
// Closed/Open/HalfOpen transitions over a sliding failure window,
// grounded on the aigateway performance optimizer's atomic-counter
// CircuitBreaker and the original riptide-types circuit_breaker port.
package circuit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/riptide-dev/riptide/internal/ports"
)

// State mirrors the original CircuitState enum.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config mirrors CircuitBreakerConfig's defaults from the original
// riptide-types port: failure_threshold 5, recovery_timeout 30s,
// half_open_max_requests 3, success_rate_threshold 0.7, failure_window 60s.
type Config struct {
	Name                 string
	FailureThreshold     int
	RecoveryTimeout      time.Duration
	HalfOpenMaxRequests  int
	SuccessRateThreshold float64
	FailureWindow        time.Duration
}

// DefaultConfig returns the original implementation's defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:                 name,
		FailureThreshold:     5,
		RecoveryTimeout:      30 * time.Second,
		HalfOpenMaxRequests:  3,
		SuccessRateThreshold: 0.7,
		FailureWindow:        60 * time.Second,
	}
}

// Breaker is a CircuitBreaker implementation over an atomic state field
// plus a mutex-guarded sliding window of failure timestamps.
type Breaker struct {
	cfg Config

	state           int32 // atomic, one of Closed/Open/HalfOpen
	openedAt        int64 // atomic, UnixNano when the circuit tripped open
	halfOpenInFlight int32 // atomic, in-flight trial calls while HalfOpen

	mu       sync.Mutex
	failures []time.Time // sliding window, oldest first

	totalRequests      uint64
	successfulRequests uint64
	failedRequests     uint64
	circuitOpens       uint64
}

// New builds a Breaker in the Closed state.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg}
}

// TryCall reports whether a call may proceed. In Open state it denies
// until RecoveryTimeout has elapsed, then transitions to HalfOpen and
// admits up to HalfOpenMaxRequests trial calls.
func (b *Breaker) TryCall(_ context.Context) (bool, error) {
	atomic.AddUint64(&b.totalRequests, 1)

	switch State(atomic.LoadInt32(&b.state)) {
	case Closed:
		return true, nil

	case Open:
		openedAt := time.Unix(0, atomic.LoadInt64(&b.openedAt))
		if time.Since(openedAt) < b.cfg.RecoveryTimeout {
			return false, apperr.CircuitOpen(b.cfg.Name)
		}
		// Recovery timeout elapsed: attempt transition to HalfOpen.
		if atomic.CompareAndSwapInt32(&b.state, int32(Open), int32(HalfOpen)) {
			atomic.StoreInt32(&b.halfOpenInFlight, 0)
		}
		return b.admitHalfOpen()

	case HalfOpen:
		return b.admitHalfOpen()

	default:
		return true, nil
	}
}

func (b *Breaker) admitHalfOpen() (bool, error) {
	for {
		current := atomic.LoadInt32(&b.halfOpenInFlight)
		if int(current) >= b.cfg.HalfOpenMaxRequests {
			return false, apperr.CircuitOpen(b.cfg.Name)
		}
		if atomic.CompareAndSwapInt32(&b.halfOpenInFlight, current, current+1) {
			return true, nil
		}
	}
}

// OnSuccess records a successful call, closing the circuit immediately
// when called while HalfOpen.
func (b *Breaker) OnSuccess() {
	atomic.AddUint64(&b.successfulRequests, 1)

	if State(atomic.LoadInt32(&b.state)) == HalfOpen {
		atomic.StoreInt32(&b.state, int32(Closed))
		atomic.AddInt32(&b.halfOpenInFlight, -1)
		b.mu.Lock()
		b.failures = nil
		b.mu.Unlock()
		return
	}
	b.pruneWindow(time.Now())
}

// OnFailure records a failed call, pushing it into the sliding window and
// tripping the circuit open if the threshold or success-rate bound is
// breached. A failure observed while HalfOpen re-opens the circuit
// immediately.
func (b *Breaker) OnFailure() {
	atomic.AddUint64(&b.failedRequests, 1)
	now := time.Now()

	if State(atomic.LoadInt32(&b.state)) == HalfOpen {
		b.trip(now)
		atomic.AddInt32(&b.halfOpenInFlight, -1)
		return
	}

	b.mu.Lock()
	b.failures = append(b.failures, now)
	b.pruneWindowLocked(now)
	count := len(b.failures)
	b.mu.Unlock()

	if count >= b.cfg.FailureThreshold {
		b.trip(now)
		return
	}
	if b.cfg.SuccessRateThreshold > 0 && b.successRate() < b.cfg.SuccessRateThreshold {
		b.trip(now)
	}
}

func (b *Breaker) trip(now time.Time) {
	if atomic.CompareAndSwapInt32(&b.state, int32(Closed), int32(Open)) ||
		atomic.CompareAndSwapInt32(&b.state, int32(HalfOpen), int32(Open)) {
		atomic.StoreInt64(&b.openedAt, now.UnixNano())
		atomic.AddUint64(&b.circuitOpens, 1)
	}
}

func (b *Breaker) pruneWindow(now time.Time) {
	b.mu.Lock()
	b.pruneWindowLocked(now)
	b.mu.Unlock()
}

func (b *Breaker) pruneWindowLocked(now time.Time) {
	cutoff := now.Add(-b.cfg.FailureWindow)
	i := 0
	for i < len(b.failures) && b.failures[i].Before(cutoff) {
		i++
	}
	b.failures = b.failures[i:]
}

func (b *Breaker) successRate() float64 {
	total := atomic.LoadUint64(&b.totalRequests)
	if total == 0 {
		return 1
	}
	successes := atomic.LoadUint64(&b.successfulRequests)
	return float64(successes) / float64(total)
}

// Stats returns a point-in-time snapshot of the breaker's counters.
func (b *Breaker) Stats() ports.CircuitStats {
	b.mu.Lock()
	currentFailures := len(b.failures)
	b.mu.Unlock()

	return ports.CircuitStats{
		State:              State(atomic.LoadInt32(&b.state)).String(),
		TotalRequests:      atomic.LoadUint64(&b.totalRequests),
		SuccessfulRequests: atomic.LoadUint64(&b.successfulRequests),
		FailedRequests:     atomic.LoadUint64(&b.failedRequests),
		CircuitOpens:       atomic.LoadUint64(&b.circuitOpens),
		CurrentFailures:    currentFailures,
		SuccessRate:        b.successRate(),
	}
}

// Reset forces the breaker back to Closed and clears its window.
func (b *Breaker) Reset() {
	atomic.StoreInt32(&b.state, int32(Closed))
	atomic.StoreInt32(&b.halfOpenInFlight, 0)
	b.mu.Lock()
	b.failures = nil
	b.mu.Unlock()
}

var _ ports.CircuitBreaker = (*Breaker)(nil)
