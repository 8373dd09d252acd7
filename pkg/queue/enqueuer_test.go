package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/todokit/pkg/queue"
)

// Mock repository for enqueuer tests
type mockEnqueuerRepo struct {
	createFunc func(ctx context.Context, task *queue.Task) error
	tasks      []*queue.Task
}

func (m *mockEnqueuerRepo) CreateTask(ctx context.Context, task *queue.Task) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, task)
	}
	m.tasks = append(m.tasks, task)
	return nil
}

// Test payload types
type enqueueTestPayload struct {
	Message string `json:"message"`
	Value   int    `json:"value"`
}

// Type that cannot be marshaled to JSON
type unmarshalablePayload struct {
	Ch chan int
}

func TestEnqueuer_NewEnqueuer(t *testing.T) {
	t.Parallel()

	t.Run("successful creation", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(&mockEnqueuerRepo{})
		require.NoError(t, err)
		require.NotNil(t, enqueuer)
	})

	t.Run("nil repository error", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(nil)
		assert.ErrorIs(t, err, queue.ErrRepositoryNil)
		assert.Nil(t, enqueuer)
	})
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		repo := &mockEnqueuerRepo{}
		enqueuer, err := queue.NewEnqueuer(repo, queue.WithEnqueuerClock(clock.Now))
		require.NoError(t, err)

		payload := enqueueTestPayload{Message: "hello", Value: 42}
		task, err := enqueuer.Enqueue(context.Background(), payload)
		require.NoError(t, err)
		require.NotNil(t, task)
		require.Len(t, repo.tasks, 1)

		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		assert.Equal(t, queue.DefaultQueueName, task.Queue)
		assert.Equal(t, queue.TaskTypeOneTime, task.TaskType)
		assert.Equal(t, "queue_test.enqueueTestPayload", task.TaskName)
		assert.Equal(t, queue.TaskStatusPending, task.Status)
		assert.Equal(t, queue.PriorityDefault, task.Priority)
		assert.Equal(t, int8(3), task.MaxRetries)
		assert.Equal(t, queue.UniqueNone, task.Uniqueness)
		assert.False(t, task.Unique())
		assert.JSONEq(t, string(raw), string(task.Payload))
		assert.Equal(t, queue.Signature(task.TaskName, task.Payload), task.Signature)
		assert.Equal(t, clock.Now(), task.ScheduledAt)
		assert.Equal(t, clock.Now(), task.CreatedAt)
	})

	t.Run("with options", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		repo := &mockEnqueuerRepo{}
		enqueuer, err := queue.NewEnqueuer(repo,
			queue.WithDefaultQueue("mail"),
			queue.WithEnqueuerClock(clock.Now),
		)
		require.NoError(t, err)

		task, err := enqueuer.Enqueue(context.Background(), enqueueTestPayload{Message: "x"},
			queue.WithQueue("low"),
			queue.WithPriority(queue.PriorityHigh),
			queue.WithMaxRetries(5),
			queue.WithDelay(time.Minute),
			queue.WithTaskName("custom.task"),
			queue.WithUniqueness(queue.UniqueUntilExecuted),
		)
		require.NoError(t, err)

		assert.Equal(t, "low", task.Queue)
		assert.Equal(t, queue.PriorityHigh, task.Priority)
		assert.Equal(t, int8(5), task.MaxRetries)
		assert.Equal(t, "custom.task", task.TaskName)
		assert.Equal(t, clock.Now().Add(time.Minute), task.ScheduledAt)
		assert.True(t, task.Unique())
	})

	t.Run("scheduled at wins over delay", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		enqueuer, err := queue.NewEnqueuer(&mockEnqueuerRepo{}, queue.WithEnqueuerClock(clock.Now))
		require.NoError(t, err)

		at := clock.Now().Add(3 * time.Hour)
		task, err := enqueuer.Enqueue(context.Background(), enqueueTestPayload{},
			queue.WithDelay(time.Minute),
			queue.WithScheduledAt(at),
		)
		require.NoError(t, err)
		assert.Equal(t, at, task.ScheduledAt)
	})

	t.Run("nil payload", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(&mockEnqueuerRepo{})
		require.NoError(t, err)

		task, err := enqueuer.Enqueue(context.Background(), nil)
		assert.ErrorIs(t, err, queue.ErrPayloadNil)
		assert.Nil(t, task)
	})

	t.Run("invalid priority", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(&mockEnqueuerRepo{})
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), enqueueTestPayload{}, queue.WithPriority(101))
		assert.ErrorIs(t, err, queue.ErrInvalidPriority)
	})

	t.Run("invalid uniqueness", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(&mockEnqueuerRepo{})
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), enqueueTestPayload{}, queue.WithUniqueness("forever"))
		assert.ErrorIs(t, err, queue.ErrInvalidUniqueness)
	})

	t.Run("unmarshalable payload", func(t *testing.T) {
		t.Parallel()

		enqueuer, err := queue.NewEnqueuer(&mockEnqueuerRepo{})
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), unmarshalablePayload{Ch: make(chan int)})
		assert.Error(t, err)
	})

	t.Run("repository error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("connection refused")
		repo := &mockEnqueuerRepo{createFunc: func(ctx context.Context, task *queue.Task) error {
			return boom
		}}
		enqueuer, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		_, err = enqueuer.Enqueue(context.Background(), enqueueTestPayload{})
		assert.ErrorIs(t, err, boom)
	})
}

func TestEnqueuer_UniqueTasks(t *testing.T) {
	t.Parallel()

	t.Run("duplicate while queued is a no-op", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		defer storage.Close()

		enqueuer, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		opts := []queue.EnqueueOption{
			queue.WithTaskName("todo.cleanup"),
			queue.WithUniqueness(queue.UniqueUntilExecuted),
		}

		first, err := enqueuer.Enqueue(context.Background(), map[string]int{"days_old": 30}, opts...)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := enqueuer.Enqueue(context.Background(), map[string]int{"days_old": 30}, opts...)
		require.NoError(t, err)
		assert.Nil(t, second)

		other, err := enqueuer.Enqueue(context.Background(), map[string]int{"days_old": 7}, opts...)
		require.NoError(t, err)
		assert.NotNil(t, other)

		tasks, err := storage.ListTasks(context.Background(), "todo.cleanup")
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("non-unique tasks are never deduplicated", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		defer storage.Close()

		enqueuer, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		for range 3 {
			task, err := enqueuer.Enqueue(context.Background(), enqueueTestPayload{Value: 1})
			require.NoError(t, err)
			require.NotNil(t, task)
		}

		tasks, err := storage.ListTasks(context.Background(), "queue_test.enqueueTestPayload")
		require.NoError(t, err)
		assert.Len(t, tasks, 3)
	})

	t.Run("held signature lock is a no-op", func(t *testing.T) {
		t.Parallel()

		repo := &mockEnqueuerRepo{}
		locker := queue.NewMemoryLocker(nil)
		enqueuer, err := queue.NewEnqueuer(repo, queue.WithEnqueuerLocker(locker))
		require.NoError(t, err)

		payload := map[string]int{"days_old": 30}
		raw, err := json.Marshal(payload)
		require.NoError(t, err)

		lock, err := locker.Acquire(context.Background(), queue.Signature("todo.cleanup", raw), time.Minute)
		require.NoError(t, err)

		task, err := enqueuer.Enqueue(context.Background(), payload,
			queue.WithTaskName("todo.cleanup"),
			queue.WithUniqueness(queue.UniqueUntilExecuted),
		)
		require.NoError(t, err)
		assert.Nil(t, task)
		assert.Empty(t, repo.tasks)

		require.NoError(t, lock.Release(context.Background()))

		task, err = enqueuer.Enqueue(context.Background(), payload,
			queue.WithTaskName("todo.cleanup"),
			queue.WithUniqueness(queue.UniqueUntilExecuted),
		)
		require.NoError(t, err)
		assert.NotNil(t, task)
		assert.Len(t, repo.tasks, 1)
	})
}
