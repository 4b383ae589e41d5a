package circuit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAfterFailureThreshold(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.FailureThreshold = 3
	cfg.SuccessRateThreshold = 0
	b := New(cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := b.TryCall(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		b.OnFailure()
	}

	assert.Equal(t, Open, stateOf(t, b))

	_, err := b.TryCall(ctx)
	assert.Error(t, err)
}

func TestBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.FailureThreshold = 1
	cfg.SuccessRateThreshold = 0
	cfg.RecoveryTimeout = 10 * time.Millisecond
	cfg.HalfOpenMaxRequests = 1
	b := New(cfg)
	ctx := context.Background()

	ok, err := b.TryCall(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	b.OnFailure()

	_, err = b.TryCall(ctx)
	require.Error(t, err, "circuit must be open immediately after tripping")

	time.Sleep(20 * time.Millisecond)

	ok, err = b.TryCall(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "a trial call must be admitted once recovery timeout elapses")

	b.OnSuccess()
	assert.Equal(t, Closed, stateOf(t, b))
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.FailureThreshold = 1
	cfg.SuccessRateThreshold = 0
	cfg.RecoveryTimeout = 10 * time.Millisecond
	cfg.HalfOpenMaxRequests = 1
	b := New(cfg)
	ctx := context.Background()

	_, _ = b.TryCall(ctx)
	b.OnFailure()
	time.Sleep(20 * time.Millisecond)

	ok, err := b.TryCall(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	b.OnFailure()

	assert.Equal(t, Open, stateOf(t, b))
}

func stateOf(t *testing.T, b *Breaker) State {
	t.Helper()
	stats := b.Stats()
	switch stats.State {
	case "closed":
		return Closed
	case "open":
		return Open
	case "half_open":
		return HalfOpen
	default:
		t.Fatalf("unknown state %q", stats.State)
		return Closed
	}
}
