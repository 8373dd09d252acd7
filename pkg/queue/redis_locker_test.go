package queue_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/todokit/pkg/queue"
)

func newTestRedisLocker(t *testing.T) *queue.RedisLocker {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	// Unique prefix per test keeps parallel runs apart
	locker, err := queue.NewRedisLocker(client, "test:"+uuid.NewString()+":")
	require.NoError(t, err)
	return locker
}

func TestNewRedisLocker(t *testing.T) {
	t.Parallel()

	_, err := queue.NewRedisLocker(nil, "")
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)
}

func TestRedisLocker(t *testing.T) {
	t.Parallel()

	t.Run("mutual exclusion", func(t *testing.T) {
		t.Parallel()

		locker := newTestRedisLocker(t)
		ctx := context.Background()

		lock, err := locker.Acquire(ctx, "sig", time.Minute)
		require.NoError(t, err)

		_, err = locker.Acquire(ctx, "sig", time.Minute)
		assert.ErrorIs(t, err, queue.ErrLockHeld)

		locked, err := locker.Locked(ctx, "sig")
		require.NoError(t, err)
		assert.True(t, locked)

		require.NoError(t, lock.Release(ctx))
		assert.ErrorIs(t, lock.Release(ctx), queue.ErrLockLost)

		locked, err = locker.Locked(ctx, "sig")
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("lock expires after ttl", func(t *testing.T) {
		t.Parallel()

		locker := newTestRedisLocker(t)
		ctx := context.Background()

		stale, err := locker.Acquire(ctx, "sig", 100*time.Millisecond)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			_, err := locker.Acquire(ctx, "sig", time.Minute)
			return err == nil
		}, 2*time.Second, 20*time.Millisecond)

		assert.ErrorIs(t, stale.Release(ctx), queue.ErrLockLost)
	})

	t.Run("uniqueness wrapper", func(t *testing.T) {
		t.Parallel()

		locker := newTestRedisLocker(t)
		ctx := context.Background()

		err := queue.WithUniquenessLock(ctx, locker, "sig", time.Minute, func(ctx context.Context) error {
			inner := queue.WithUniquenessLock(ctx, locker, "sig", time.Minute, func(context.Context) error { return nil })
			assert.ErrorIs(t, inner, queue.ErrLockHeld)
			return nil
		})
		require.NoError(t, err)

		locked, err := locker.Locked(ctx, "sig")
		require.NoError(t, err)
		assert.False(t, locked)
	})
}
