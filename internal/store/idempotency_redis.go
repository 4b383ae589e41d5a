package store

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/riptide-dev/riptide/internal/ports"
)

// releaseScript deletes a lock key only if it's still held by the caller's
// token, the classic CAS-release Lua idiom for Redis-backed locks.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`

// publishIfLockHeldScript stores the result key only while the lock key
// still holds the caller's token, so a lease that expired or was stolen
// can't have its result overwritten by a stale owner.
const publishIfLockHeldScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
  return 1
else
  return 0
end
`

// RedisIdempotencyStore is a ports.IdempotencyStore backed by Redis SET-NX
// locks and CAS-guarded Lua scripts, grounded on the teacher's go-redis
// usage in internal/cache/redis.go and the pandora-exchange idempotency
// key-format convention.
type RedisIdempotencyStore struct {
	client    RedisClient
	namespace string
}

func NewRedisIdempotencyStore(client RedisClient, namespace string) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, namespace: namespace}
}

func (r *RedisIdempotencyStore) lockKey(key string) string {
	return cacheKey(r.namespace, "lock:"+key)
}

func (r *RedisIdempotencyStore) resultKey(key string) string {
	return cacheKey(r.namespace, "result:"+key)
}

func (r *RedisIdempotencyStore) TryAcquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.lockKey(key), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *RedisIdempotencyStore) Release(ctx context.Context, key, token string) error {
	return r.client.Eval(ctx, releaseScript, []string{r.lockKey(key)}, token).Err()
}

func (r *RedisIdempotencyStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := r.client.Get(ctx, r.lockKey(key)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisIdempotencyStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := r.client.TTL(ctx, r.lockKey(key)).Result()
	if err != nil {
		return 0, false, err
	}
	if d <= 0 {
		return 0, false, nil
	}
	return d, true, nil
}

func (r *RedisIdempotencyStore) StoreResult(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.resultKey(key), result, ttl).Err()
}

func (r *RedisIdempotencyStore) GetResult(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.client.Get(ctx, r.resultKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (r *RedisIdempotencyStore) PublishIfLockHeld(ctx context.Context, key, token string, result []byte, ttl time.Duration) (bool, error) {
	res, err := r.client.Eval(ctx, publishIfLockHeldScript,
		[]string{r.lockKey(key), r.resultKey(key)},
		token, result, ttl.Milliseconds(),
	).Result()
	if err != nil {
		return false, err
	}
	n, ok := res.(int64)
	if !ok {
		return false, nil
	}
	return n == 1, nil
}

var _ ports.IdempotencyStore = (*RedisIdempotencyStore)(nil)
