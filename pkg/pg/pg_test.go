package pg_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/todokit/db/migrations"
	"github.com/dmitrymomot/todokit/pkg/pg"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, pg.IsNotFoundError(fmt.Errorf("load todo: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(nil))
	assert.False(t, pg.IsNotFoundError(errors.New("other")))

	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.False(t, pg.IsCheckViolationError(dup))
	assert.False(t, pg.IsCheckViolationError(nil))

	assert.True(t, pg.IsCheckViolationError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23514"})))
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	ok := pg.Healthcheck(pingerFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok(context.Background()))

	down := errors.New("connection refused")
	failing := pg.Healthcheck(pingerFunc(func(context.Context) error { return down }))
	err := failing(context.Background())
	assert.ErrorIs(t, err, pg.ErrHealthcheckFailed)
	assert.ErrorIs(t, err, down)
}

func TestMigrate_RequiresFS(t *testing.T) {
	t.Parallel()

	err := pg.Migrate(context.Background(), nil, nil, pg.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, pg.ErrMigrationsNotProvided)
}

func TestConnect_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}

func TestConnectAndMigrate(t *testing.T) {
	connURL := os.Getenv("TEST_PG_CONN_URL")
	if connURL == "" {
		t.Skip("TEST_PG_CONN_URL is not set")
	}

	ctx := context.Background()
	cfg := pg.Config{
		ConnectionString:  connURL,
		MaxOpenConns:      4,
		MaxIdleConns:      1,
		HealthCheckPeriod: time.Minute,
		MaxConnIdleTime:   time.Minute,
		MaxConnLifetime:   time.Minute,
		RetryAttempts:     2,
		RetryInterval:     100 * time.Millisecond,
		MigrationsTable:   "schema_migrations",
	}

	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	defer pool.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, pg.Migrate(ctx, pool, migrations.FS, cfg, log))
	// Applying twice is a no-op
	require.NoError(t, pg.Migrate(ctx, pool, migrations.FS, cfg, log))

	require.NoError(t, pg.Healthcheck(pool)(ctx))

	err = pg.WithTx(ctx, pool, func(tx pgx.Tx) error {
		var n int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM todos`).Scan(&n); err != nil {
			return err
		}
		return errors.New("rollback")
	})
	assert.EqualError(t, err, "rollback")
}
