package queue_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/todokit/pkg/queue"
)

func TestParseCron(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{expr: "0 3 * * *", want: time.Date(2024, time.January, 1, 3, 0, 0, 0, time.UTC)},
		{expr: "*/15 * * * *", want: time.Date(2024, time.January, 1, 0, 15, 0, 0, time.UTC)},
		{expr: "@daily", want: time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)},
		{expr: "@every 90m", want: from.Add(90 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			sched, err := queue.ParseCron(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sched.Next(from))
			assert.Equal(t, tt.expr, sched.String())
		})
	}

	for _, expr := range []string{"", "61 * * * *", "not a cron", "* * * *"} {
		_, err := queue.ParseCron(expr)
		assert.ErrorIs(t, err, queue.ErrInvalidSchedule, "expr %q", expr)
	}
}

func TestEveryInterval(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	sched := queue.EveryInterval(10 * time.Minute)
	assert.Equal(t, from.Add(10*time.Minute), sched.Next(from))
	assert.Equal(t, "every 10m0s", sched.String())
}

func writeScheduleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadScheduleFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file means no entries", func(t *testing.T) {
		t.Parallel()

		entries, err := queue.LoadScheduleFile(filepath.Join(t.TempDir(), "absent.yml"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("empty file means no entries", func(t *testing.T) {
		t.Parallel()

		entries, err := queue.LoadScheduleFile(writeScheduleFile(t, ""))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("entries keep file order", func(t *testing.T) {
		t.Parallel()

		path := writeScheduleFile(t, `
todo_cleanup:
  cron: "0 3 * * *"
  class: todo.cleanup
  queue: low
  args:
    days_old: 30
  lock: until_executed
heartbeat:
  cron: "*/5 * * * *"
  task: system.heartbeat
  priority: 75
  max_retries: 1
`)

		entries, err := queue.LoadScheduleFile(path)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		cleanup := entries[0]
		assert.Equal(t, "todo_cleanup", cleanup.Name)
		assert.Equal(t, "0 3 * * *", cleanup.Cron)
		assert.Equal(t, "todo.cleanup", cleanup.Task)
		assert.Equal(t, "low", cleanup.Queue)
		assert.Equal(t, map[string]any{"days_old": 30}, cleanup.Args)
		assert.Equal(t, queue.UniqueUntilExecuted, cleanup.Uniqueness)
		require.NotNil(t, cleanup.Schedule)

		heartbeat := entries[1]
		assert.Equal(t, "heartbeat", heartbeat.Name)
		assert.Equal(t, "system.heartbeat", heartbeat.Task)
		assert.Equal(t, queue.DefaultQueueName, heartbeat.Queue)
		assert.Equal(t, queue.PriorityHigh, heartbeat.Priority)
		assert.Equal(t, int8(1), heartbeat.MaxRetries)
		assert.Equal(t, queue.UniqueNone, heartbeat.Uniqueness)
	})

	t.Run("malformed entries are skipped and reported", func(t *testing.T) {
		t.Parallel()

		path := writeScheduleFile(t, `
bad_cron:
  cron: "every tuesday"
  class: todo.cleanup
good:
  cron: "@hourly"
  class: todo.cleanup
no_cron:
  class: todo.cleanup
no_task:
  cron: "@hourly"
bad_lock:
  cron: "@hourly"
  class: todo.cleanup
  lock: forever
bad_priority:
  cron: "@hourly"
  class: todo.cleanup
  priority: 500
`)

		entries, err := queue.LoadScheduleFile(path)
		require.Error(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "good", entries[0].Name)

		assert.ErrorIs(t, err, queue.ErrInvalidSchedule)

		var joined interface{ Unwrap() []error }
		require.True(t, errors.As(err, &joined))

		var names []string
		for _, e := range joined.Unwrap() {
			var entryErr *queue.ScheduleEntryError
			require.True(t, errors.As(e, &entryErr))
			assert.ErrorIs(t, entryErr, queue.ErrInvalidSchedule)
			names = append(names, entryErr.Name)
		}
		assert.Equal(t, []string{"bad_cron", "no_cron", "no_task", "bad_lock", "bad_priority"}, names)
	})

	t.Run("top level must be a mapping", func(t *testing.T) {
		t.Parallel()

		_, err := queue.LoadScheduleFile(writeScheduleFile(t, "- cron: \"@hourly\"\n"))
		assert.ErrorIs(t, err, queue.ErrInvalidScheduleFile)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		t.Parallel()

		_, err := queue.LoadScheduleFile(writeScheduleFile(t, "a: [unclosed\n"))
		assert.ErrorIs(t, err, queue.ErrInvalidScheduleFile)
	})
}
