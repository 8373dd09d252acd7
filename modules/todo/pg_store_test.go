package todo_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/todokit/db/migrations"
	"github.com/dmitrymomot/todokit/modules/todo"
	"github.com/dmitrymomot/todokit/pkg/pg"
)

func newPostgresStore(t *testing.T, clock *fakeClock) *todo.PostgresStore {
	t.Helper()

	connURL := os.Getenv("TEST_PG_CONN_URL")
	if connURL == "" {
		t.Skip("TEST_PG_CONN_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, migrations.FS, pg.Config{MigrationsTable: "schema_migrations"}, discardLogger))

	_, err = pool.Exec(ctx, `TRUNCATE todos RESTART IDENTITY`)
	require.NoError(t, err)

	store, err := todo.NewPostgresStore(pool, todo.WithPostgresStoreClock(clock.Now))
	require.NoError(t, err)
	return store
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	t.Parallel()

	_, err := todo.NewPostgresStore(nil)
	assert.ErrorIs(t, err, todo.ErrStoreNil)
}

// Runs sequentially: every subtest truncates the shared table.
func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	t.Run("positions and ordering", func(t *testing.T) {
		store := newPostgresStore(t, newFakeClock())

		a, err := store.Insert(ctx, todo.CreateParams{Title: "A"})
		require.NoError(t, err)
		b, err := store.Insert(ctx, todo.CreateParams{Title: "B"})
		require.NoError(t, err)
		tie, err := store.Insert(ctx, todo.CreateParams{Title: "tie", Position: ptr(1)})
		require.NoError(t, err)
		assert.Equal(t, 1, a.Position)
		assert.Equal(t, 2, b.Position)

		items, err := store.List(ctx, todo.Filter{})
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, []int64{a.ID, tie.ID, b.ID}, []int64{items[0].ID, items[1].ID, items[2].ID})

		max, ok, err := store.MaxPosition(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 2, max)
	})

	t.Run("concurrent inserts", func(t *testing.T) {
		store := newPostgresStore(t, newFakeClock())

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Insert(ctx, todo.CreateParams{Title: fmt.Sprintf("item %d", i)})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		items, err := store.List(ctx, todo.Filter{})
		require.NoError(t, err)
		for i, it := range items {
			assert.Equal(t, i+1, it.Position)
		}
	})

	t.Run("update toggle delete", func(t *testing.T) {
		store := newPostgresStore(t, newFakeClock())

		it, err := store.Insert(ctx, todo.CreateParams{Title: "A"})
		require.NoError(t, err)

		got, err := store.Update(ctx, it.ID, todo.Patch{Title: ptr("A2")})
		require.NoError(t, err)
		assert.Equal(t, "A2", got.Title)
		assert.Equal(t, it.Position, got.Position)

		toggled, err := store.Toggle(ctx, it.ID)
		require.NoError(t, err)
		assert.True(t, toggled.Completed)
		back, err := store.Toggle(ctx, it.ID)
		require.NoError(t, err)
		assert.False(t, back.Completed)

		require.NoError(t, store.Delete(ctx, it.ID))
		assert.ErrorIs(t, store.Delete(ctx, it.ID), todo.ErrNotFound)
		_, err = store.Toggle(ctx, it.ID)
		assert.ErrorIs(t, err, todo.ErrNotFound)
		_, err = store.Get(ctx, it.ID)
		assert.ErrorIs(t, err, todo.ErrNotFound)
	})

	t.Run("retention cleanup", func(t *testing.T) {
		clock := newFakeClock()
		store := newPostgresStore(t, clock)

		a, err := store.Insert(ctx, todo.CreateParams{Title: "A"})
		require.NoError(t, err)
		b, err := store.Insert(ctx, todo.CreateParams{Title: "B"})
		require.NoError(t, err)
		_, err = store.Toggle(ctx, a.ID)
		require.NoError(t, err)

		clock.Advance(31 * 24 * time.Hour)
		task, err := todo.NewCleanupTask(store, todo.WithCleanupClock(clock.Now), todo.WithCleanupLogger(discardLogger))
		require.NoError(t, err)

		n, err := task.Run(ctx, 30)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		n, err = task.Run(ctx, 30)
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = store.Get(ctx, b.ID)
		assert.NoError(t, err)

		count, err := store.Count(ctx, todo.CompletedFilter())
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}
