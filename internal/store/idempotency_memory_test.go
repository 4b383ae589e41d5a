package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore_ExclusiveAcquire(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	token1, ok1, err := s.TryAcquire(ctx, "job-1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok1)
	assert.NotEmpty(t, token1)

	_, ok2, err := s.TryAcquire(ctx, "job-1", time.Second)
	require.NoError(t, err)
	assert.False(t, ok2, "second acquire on the same in-flight key must fail")

	require.NoError(t, s.Release(ctx, "job-1", token1))

	token3, ok3, err := s.TryAcquire(ctx, "job-1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok3, "acquire must succeed again after release")
	assert.NotEqual(t, token1, token3)
}

func TestMemoryIdempotencyStore_ExpiresAfterTTL(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	_, ok, err := s.TryAcquire(ctx, "job-2", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok2, err := s.TryAcquire(ctx, "job-2", time.Second)
	require.NoError(t, err)
	assert.True(t, ok2, "acquire must succeed once the prior lease expires")
}

func TestMemoryIdempotencyStore_PublishIfLockHeld(t *testing.T) {
	s := NewMemoryIdempotencyStore(time.Minute)
	defer s.Close()
	ctx := context.Background()

	token, ok, err := s.TryAcquire(ctx, "job-3", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	published, err := s.PublishIfLockHeld(ctx, "job-3", token, []byte("result"), time.Minute)
	require.NoError(t, err)
	assert.True(t, published)

	result, found, err := s.GetResult(ctx, "job-3")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("result"), result)

	published2, err := s.PublishIfLockHeld(ctx, "job-3", "stale-token", []byte("other"), time.Minute)
	require.NoError(t, err)
	assert.False(t, published2, "a stale token must not be able to overwrite the published result")
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache("test-ns", time.Minute)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "key", []byte("value"), time.Minute))
	v, found, err := c.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("value"), v)

	require.NoError(t, c.Delete(ctx, "key"))
	_, found, err = c.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, found)
}
