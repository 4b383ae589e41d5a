package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	p, err := NewPool(ctx, 2, 2, 128, 1000, time.Second, 200*time.Millisecond)
	require.NoError(t, err)
	defer p.Close()

	r, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.NotNil(t, r.Item())
	r.Release()

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Acquired)
	assert.Equal(t, int64(1), stats.Released)
}

func TestPool_AcquireTimesOutWhenExhausted(t *testing.T) {
	ctx := context.Background()
	p, err := NewPool(ctx, 1, 1, 128, 1000, time.Second, 50*time.Millisecond)
	require.NoError(t, err)
	defer p.Close()

	r1, err := p.Acquire(ctx)
	require.NoError(t, err)

	_, err = p.Acquire(ctx)
	assert.Error(t, err, "acquiring from an exhausted pool must fail once the acquire timeout elapses")

	r1.Release()
	r2, err := p.Acquire(ctx)
	require.NoError(t, err)
	r2.Release()
}

func TestPool_SpawnsOnDemandBelowMaxSize(t *testing.T) {
	ctx := context.Background()
	// initialSize (1) is below maxSize (3): a second concurrent Acquire must
	// spawn a fresh instance rather than wait out the acquire timeout, since
	// the pool still has room to grow.
	p, err := NewPool(ctx, 3, 1, 128, 1000, time.Second, 2*time.Second)
	require.NoError(t, err)
	defer p.Close()

	r1, err := p.Acquire(ctx)
	require.NoError(t, err)

	start := time.Now()
	r2, err := p.Acquire(ctx)
	require.NoError(t, err, "acquire below maxSize must spawn on demand instead of timing out")
	assert.Less(t, time.Since(start), 500*time.Millisecond, "on-demand spawn must not wait for the acquire timeout")
	assert.NotEqual(t, r1.Item().ID, r2.Item().ID)

	r1.Release()
	r2.Release()
}

func TestGovernor_ChargesAndRejectsOverLimit(t *testing.T) {
	g := NewGovernor(10, 100, time.Second)

	require.NoError(t, g.ChargeMemory(8))
	err := g.ChargeMemory(5)
	assert.Error(t, err, "charging past the memory page limit must fail")

	require.NoError(t, g.ChargeFuel(100))
	err = g.ChargeFuel(1)
	assert.Error(t, err, "charging past the fuel budget must fail")

	g.Refuel()
	assert.Equal(t, int64(100), g.FuelRemaining())
	assert.Equal(t, int64(0), g.MemoryUsedPages())
}
