package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"smsrelay/pkg/metrics"
)

const backendRedis = "redis"

const incrementIfBelowScript = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if current >= limit then
  return {0, current}
end
current = redis.call('INCR', KEYS[1])
if current == 1 and tonumber(ARGV[2]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, current}
`

var incrementIfBelow = redis.NewScript(incrementIfBelowScript)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		metrics.IncStoreOperation(backendRedis, "get", "miss")
		return "", false, nil
	}
	if err != nil {
		metrics.IncStoreOperation(backendRedis, "get", "error")
		return "", false, fmt.Errorf("redis GET failed: %w", err)
	}
	metrics.IncStoreOperation(backendRedis, "get", "hit")
	return val, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, normalizeTTL(ttl)).Err(); err != nil {
		metrics.IncStoreOperation(backendRedis, "put", "error")
		return fmt.Errorf("redis SET failed: %w", err)
	}
	metrics.IncStoreOperation(backendRedis, "put", "ok")
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		metrics.IncStoreOperation(backendRedis, "delete", "error")
		return fmt.Errorf("redis DEL failed: %w", err)
	}
	metrics.IncStoreOperation(backendRedis, "delete", "ok")
	return nil
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, normalizeTTL(ttl)).Result()
	if err != nil {
		metrics.IncStoreOperation(backendRedis, "put_if_absent", "error")
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	metrics.IncStoreOperation(backendRedis, "put_if_absent", boolStatus(ok, "written", "exists"))
	return ok, nil
}

func (s *RedisStore) IncrementIfBelow(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	res, err := incrementIfBelow.Run(ctx, s.client, []string{key}, limit, normalizeTTL(ttl).Milliseconds()).Int64Slice()
	if err != nil {
		metrics.IncStoreOperation(backendRedis, "increment", "error")
		return 0, false, fmt.Errorf("redis increment script failed: %w", err)
	}
	if len(res) != 2 {
		metrics.IncStoreOperation(backendRedis, "increment", "error")
		return 0, false, fmt.Errorf("redis increment script returned %d values", len(res))
	}

	ok := res[0] == 1
	metrics.IncStoreOperation(backendRedis, "increment", boolStatus(ok, "incremented", "at_limit"))
	return res[1], ok, nil
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}

func boolStatus(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
