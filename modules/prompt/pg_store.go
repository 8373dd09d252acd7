package prompt

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/todokit/pkg/pg"
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps pairs in the prompt_pairs table.
type PostgresStore struct {
	db  DB
	now func() time.Time
}

func NewPostgresStore(db DB, now func() time.Time) (*PostgresStore, error) {
	if db == nil {
		return nil, ErrStoreNil
	}
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{db: db, now: now}, nil
}

const pairColumns = `id, prompt, response, model, version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, prompt string) (Pair, error) {
	now := s.now()
	return s.queryPair(ctx,
		`INSERT INTO prompt_pairs (prompt, created_at, updated_at) VALUES ($1, $2, $2) RETURNING `+pairColumns,
		prompt, now)
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Pair, error) {
	return s.queryPair(ctx, `SELECT `+pairColumns+` FROM prompt_pairs WHERE id = $1`, id)
}

func (s *PostgresStore) RecordResponse(ctx context.Context, id int64, response, model string) (Pair, error) {
	return s.queryPair(ctx,
		`UPDATE prompt_pairs
		SET response = $2, model = $3, version = version + 1, updated_at = $4
		WHERE id = $1
		RETURNING `+pairColumns,
		id, response, model, s.now())
}

func (s *PostgresStore) queryPair(ctx context.Context, sql string, args ...any) (Pair, error) {
	var p Pair
	err := s.db.QueryRow(ctx, sql, args...).Scan(
		&p.ID, &p.Prompt, &p.Response, &p.Model, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	switch {
	case err == nil:
		return p, nil
	case pg.IsNotFoundError(err):
		return Pair{}, ErrNotFound
	default:
		return Pair{}, errors.Join(ErrStorage, err)
	}
}
