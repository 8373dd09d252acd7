package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockPrefix namespaces uniqueness lock keys in Redis.
const DefaultLockPrefix = "queue:unique:"

// releaseScript deletes the key only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process connected to the same Redis.
// Locks are plain keys with a PX expiry, so a crashed holder frees the key
// once the TTL passes.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLocker creates a Redis-backed locker. An empty prefix means DefaultLockPrefix.
func NewRedisLocker(client redis.UniversalClient, prefix string) (*RedisLocker, error) {
	if client == nil {
		return nil, ErrRepositoryNil
	}
	if prefix == "" {
		prefix = DefaultLockPrefix
	}
	return &RedisLocker{client: client, prefix: prefix}, nil
}

// Acquire implements Locker
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return &redisLock{locker: l, key: key, token: token}, nil
}

// Locked implements Locker
func (l *RedisLocker) Locked(ctx context.Context, key string) (bool, error) {
	n, err := l.client.Exists(ctx, l.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check lock %q: %w", key, err)
	}
	return n > 0, nil
}

type redisLock struct {
	locker *RedisLocker
	key    string
	token  string
}

func (r *redisLock) Key() string { return r.key }

func (r *redisLock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, r.locker.client, []string{r.locker.prefix + r.key}, r.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %q: %w", r.key, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}
