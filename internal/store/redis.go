package store

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisClient is the subset of *redis.Client the store package depends on,
// narrowed so tests can substitute a miniredis-backed or fake client.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisCache is a ports.Cache backed by go-redis, grounded on the
// teacher's internal/cache/redis.go (jsoniter envelope, namespaced keys).
type RedisCache struct {
	client    RedisClient
	namespace string
}

func NewRedisCache(client RedisClient, namespace string) *RedisCache {
	return &RedisCache{client: client, namespace: namespace}
}

type redisEnvelope struct {
	Value []byte `json:"value"`
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.client.Get(ctx, cacheKey(r.namespace, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, err
	}
	return env.Value, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	raw, err := json.Marshal(redisEnvelope{Value: value})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, cacheKey(r.namespace, key), raw, ttl).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, cacheKey(r.namespace, key)).Err()
}
