package ratelimiter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces bucket keys in Redis.
const DefaultKeyPrefix = "ratelimit:"

// consumeScript refills and consumes atomically. Buckets are hashes with the
// token count and the last refill in milliseconds; they expire once a full
// refill would have happened anyway.
//
// KEYS[1] bucket; ARGV capacity, refill rate, interval ms, now ms, tokens.
// Returns {remaining, reset_at_ms}.
var consumeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local requested = tonumber(ARGV[5])

local state = redis.call("HMGET", KEYS[1], "tokens", "last_refill")
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
	tokens = capacity
	last = now
end

local elapsed = now - last
if elapsed >= interval then
	local intervals = math.min(math.floor(elapsed / interval), math.floor(capacity / rate) + 1)
	tokens = math.min(tokens + intervals * rate, capacity)
	last = now
end

local remaining = tokens - requested
if remaining >= 0 then
	tokens = remaining
end

redis.call("HSET", KEYS[1], "tokens", tokens, "last_refill", last)
redis.call("PEXPIRE", KEYS[1], (math.floor(capacity / rate) + 2) * interval)
return {remaining, last + interval}
`)

// RedisStore shares buckets between processes.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed store. An empty prefix means DefaultKeyPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, ErrStoreNil
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// ConsumeTokens implements Store.
func (s *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, config Config, now time.Time) (int, time.Time, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{s.prefix + key},
		config.Capacity, config.RefillRate, config.RefillInterval.Milliseconds(), now.UnixMilli(), tokens,
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, errors.New("unexpected script result"))
	}
	return int(res[0]), time.UnixMilli(res[1]), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
