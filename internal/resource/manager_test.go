package resource

import (
	"context"
	"testing"
	"time"

	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_PerHostIsolation(t *testing.T) {
	m := NewManager(1, 1, 0, time.Hour, time.Hour, 30*time.Second)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "a.example"))
	err := m.Acquire(ctx, "a.example")
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindRateLimited, appErr.Kind)

	// A different host must not be affected by a.example's exhaustion.
	require.NoError(t, m.Acquire(ctx, "b.example"))
}

func TestHostBucket_RefillsOverTime(t *testing.T) {
	b := NewHostBucket(10, 1, 0)
	_, err := b.Acquire()
	require.NoError(t, err)

	_, err = b.Acquire()
	require.Error(t, err, "bucket with burst 1 must reject the immediate second request")

	time.Sleep(150 * time.Millisecond)
	_, err = b.Acquire()
	assert.NoError(t, err, "bucket must have refilled after waiting longer than 1/rps")
}

func TestHostBucket_DegradationScoreRisesWithFailures(t *testing.T) {
	b := NewHostBucket(100, 10, 0)
	before := b.DegradationScore()

	for i := 0; i < 5; i++ {
		_, _ = b.Acquire()
		b.RecordFailure()
	}
	after := b.DegradationScore()

	assert.Greater(t, after, before)
}

func TestHostBucket_DegradationScoreWeightsTimeoutsHigherThanFailures(t *testing.T) {
	timeoutHeavy := NewHostBucket(100, 10, 0)
	failureHeavy := NewHostBucket(100, 10, 0)

	for i := 0; i < 4; i++ {
		_, _ = timeoutHeavy.Acquire()
		timeoutHeavy.RecordTimeout()

		_, _ = failureHeavy.Acquire()
		failureHeavy.RecordFailure()
	}

	// spec §4.3.3: degradation = min(1, 0.6*timeout_rate + 0.4*failure_rate),
	// so an all-timeout history must score higher than an all-failure one at
	// the same request count.
	assert.Greater(t, timeoutHeavy.DegradationScore(), failureHeavy.DegradationScore())
	assert.InDelta(t, 0.6, timeoutHeavy.DegradationScore(), 1e-9)
	assert.InDelta(t, 0.4, failureHeavy.DegradationScore(), 1e-9)
}

func TestHostBucket_JitterScalesWithRPS(t *testing.T) {
	slow := NewHostBucket(1, 10, 1)
	fast := NewHostBucket(1000, 10, 1)

	var slowMax, fastMax time.Duration
	for i := 0; i < 20; i++ {
		if s, err := slow.Acquire(); err == nil && s > slowMax {
			slowMax = s
		}
		if s, err := fast.Acquire(); err == nil && s > fastMax {
			fastMax = s
		}
	}

	assert.Less(t, fastMax, slowMax, "jitter must scale with 1/rps, not a fixed one-second base")
}
