package todo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/todokit/pkg/pg"
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	pg.TxBeginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps items in the todos table. Position assignment is
// serialized with a transaction-scoped advisory lock.
type PostgresStore struct {
	db  DB
	now func() time.Time
}

type PostgresStoreOption func(*PostgresStore)

// WithPostgresStoreClock overrides the time source for created_at/updated_at.
func WithPostgresStoreClock(now func() time.Time) PostgresStoreOption {
	return func(s *PostgresStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewPostgresStore(db DB, opts ...PostgresStoreOption) (*PostgresStore, error) {
	if db == nil {
		return nil, ErrStoreNil
	}
	s := &PostgresStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// positionLockKey is the advisory lock id guarding max(position)+1.
const positionLockKey int64 = 0x746f646f // "todo"

const itemColumns = `id, title, completed, position, created_at, updated_at`

// Nullable parameters disable their predicate: $1 completed, $2 updated_before.
const filterPredicate = `($1::boolean IS NULL OR completed = $1) AND ($2::timestamptz IS NULL OR updated_at < $2)`

func (s *PostgresStore) Insert(ctx context.Context, params CreateParams) (Item, error) {
	if err := params.Validate(); err != nil {
		return Item{}, err
	}

	var it Item
	err := pg.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, positionLockKey); err != nil {
			return err
		}

		position := 0
		if params.Position != nil {
			position = *params.Position
		} else {
			var err error
			if position, err = AssignPosition(ctx, txPositionReader{tx}); err != nil {
				return err
			}
		}

		now := s.now()
		return scanItem(tx.QueryRow(ctx,
			`INSERT INTO todos (title, completed, position, created_at, updated_at)
			VALUES ($1, FALSE, $2, $3, $3)
			RETURNING `+itemColumns,
			params.Title, position, now,
		), &it)
	})
	if err != nil {
		return Item{}, storeError(err)
	}
	return it, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Item, error) {
	var it Item
	if err := scanItem(s.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM todos WHERE id = $1`, id), &it); err != nil {
		return Item{}, storeError(err)
	}
	return it, nil
}

func (s *PostgresStore) Update(ctx context.Context, id int64, patch Patch) (Item, error) {
	if err := patch.Validate(); err != nil {
		return Item{}, err
	}

	var it Item
	err := scanItem(s.db.QueryRow(ctx,
		`UPDATE todos SET
			title = COALESCE($2, title),
			completed = COALESCE($3, completed),
			position = COALESCE($4, position),
			updated_at = $5
		WHERE id = $1
		RETURNING `+itemColumns,
		id, patch.Title, patch.Completed, patch.Position, s.now(),
	), &it)
	if err != nil {
		return Item{}, storeError(err)
	}
	return it, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return storeError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Toggle(ctx context.Context, id int64) (Item, error) {
	var it Item
	err := scanItem(s.db.QueryRow(ctx,
		`UPDATE todos SET completed = NOT completed, updated_at = $2
		WHERE id = $1
		RETURNING `+itemColumns,
		id, s.now(),
	), &it)
	if err != nil {
		return Item{}, storeError(err)
	}
	return it, nil
}

func (s *PostgresStore) DeleteWhere(ctx context.Context, f Filter) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM todos WHERE `+filterPredicate, f.Completed, f.UpdatedBefore)
	if err != nil {
		return 0, storeError(err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Item, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+itemColumns+` FROM todos WHERE `+filterPredicate+` ORDER BY position ASC, id ASC`,
		f.Completed, f.UpdatedBefore,
	)
	if err != nil {
		return nil, storeError(err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := scanItem(row, &it)
		return it, err
	})
	if err != nil {
		return nil, storeError(err)
	}
	return items, nil
}

func (s *PostgresStore) Count(ctx context.Context, f Filter) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM todos WHERE `+filterPredicate, f.Completed, f.UpdatedBefore).Scan(&n); err != nil {
		return 0, storeError(err)
	}
	return n, nil
}

func (s *PostgresStore) MaxPosition(ctx context.Context) (int, bool, error) {
	max, ok, err := readMaxPosition(ctx, s.db)
	if err != nil {
		return 0, false, storeError(err)
	}
	return max, ok, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txPositionReader reads the maximum inside the locking transaction.
type txPositionReader struct {
	q rowQuerier
}

func (r txPositionReader) MaxPosition(ctx context.Context) (int, bool, error) {
	return readMaxPosition(ctx, r.q)
}

func readMaxPosition(ctx context.Context, q rowQuerier) (int, bool, error) {
	var max *int
	if err := q.QueryRow(ctx, `SELECT max(position) FROM todos`).Scan(&max); err != nil {
		return 0, false, err
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

func scanItem(row pgx.Row, it *Item) error {
	return row.Scan(&it.ID, &it.Title, &it.Completed, &it.Position, &it.CreatedAt, &it.UpdatedAt)
}

func storeError(err error) error {
	switch {
	case pg.IsNotFoundError(err):
		return ErrNotFound
	case pg.IsCheckViolationError(err):
		return errors.Join(ErrConstraint, err)
	default:
		return errors.Join(ErrStorage, err)
	}
}
