package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *pgxpool.Pool, *pgx.Conn and pgx.Tx used by PostgresStorage
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStorage implements all queue repository interfaces on top of the
// tasks and tasks_dlq tables.
type PostgresStorage struct {
	db  DBTX
	now func() time.Time
}

// PostgresStorageOption configures PostgresStorage
type PostgresStorageOption func(*PostgresStorage)

// WithPostgresClock overrides the time source used for claims and retries
func WithPostgresClock(now func() time.Time) PostgresStorageOption {
	return func(s *PostgresStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPostgresStorage creates a storage backed by PostgreSQL
func NewPostgresStorage(db DBTX, opts ...PostgresStorageOption) (*PostgresStorage, error) {
	if db == nil {
		return nil, ErrRepositoryNil
	}

	s := &PostgresStorage{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

const taskColumns = `id, queue, task_type, task_name, payload, signature, uniqueness, status,
	priority, retry_count, max_retries, scheduled_at, locked_until, locked_by,
	processed_at, error, created_at`

// The conflict target must repeat the partial index predicate exactly.
const createTaskQuery = `
INSERT INTO tasks (` + taskColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (signature) WHERE uniqueness = 'until_executed' AND status IN ('pending', 'processing')
DO NOTHING`

// CreateTask implements EnqueuerRepository
func (s *PostgresStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	var payload any
	if len(task.Payload) > 0 {
		payload = task.Payload
	}

	tag, err := s.db.Exec(ctx, createTaskQuery,
		task.ID, task.Queue, string(task.TaskType), task.TaskName, payload,
		task.Signature, string(task.Uniqueness), string(task.Status),
		int16(task.Priority), int16(task.RetryCount), int16(task.MaxRetries),
		task.ScheduledAt, task.LockedUntil, task.LockedBy,
		task.ProcessedAt, task.Error, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrDuplicateTask
	}

	return nil
}

// Expired claims are picked up again so a crashed worker cannot strand a task.
const claimTaskQuery = `
UPDATE tasks
SET status = 'processing', locked_until = $3, locked_by = $2
WHERE id = (
	SELECT id FROM tasks
	WHERE queue = ANY($1::text[])
	  AND (
		(status = 'pending' AND scheduled_at <= $4)
		OR (status = 'processing' AND locked_until < $4)
	  )
	ORDER BY array_position($1::text[], queue), priority DESC, scheduled_at ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING ` + taskColumns

// ClaimTask implements WorkerRepository
func (s *PostgresStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	now := s.now()

	task, err := scanTask(s.db.QueryRow(ctx, claimTaskQuery, queues, workerID, now.Add(lockDuration), now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoTaskToClaim
		}
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	return task, nil
}

const completeTaskQuery = `
UPDATE tasks
SET status = 'completed', processed_at = $2, locked_until = NULL, locked_by = NULL
WHERE id = $1 AND status = 'processing'`

// CompleteTask implements WorkerRepository
func (s *PostgresStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, completeTaskQuery, taskID, s.now())
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.stateError(ctx, taskID)
	}
	return nil
}

const releaseTaskQuery = `
UPDATE tasks
SET status = 'pending', scheduled_at = $2, locked_until = NULL, locked_by = NULL
WHERE id = $1 AND status = 'processing'`

// ReleaseTask implements WorkerRepository
func (s *PostgresStorage) ReleaseTask(ctx context.Context, taskID uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx, releaseTaskQuery, taskID, at)
	if err != nil {
		return fmt.Errorf("failed to release task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.stateError(ctx, taskID)
	}
	return nil
}

// Same exhaustion rule as Task.exhaustedAfterFailure; SET expressions read the old row.
const failTaskQuery = `
UPDATE tasks
SET retry_count = retry_count + 1,
	error = $2,
	locked_until = NULL,
	locked_by = NULL,
	status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
	scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at ELSE $3 END,
	processed_at = CASE WHEN retry_count + 1 >= max_retries THEN $4 ELSE processed_at END
WHERE id = $1 AND status = 'processing'`

// FailTask implements WorkerRepository
func (s *PostgresStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string, retryAt time.Time) error {
	tag, err := s.db.Exec(ctx, failTaskQuery, taskID, errorMsg, retryAt, s.now())
	if err != nil {
		return fmt.Errorf("failed to record task failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.stateError(ctx, taskID)
	}
	return nil
}

const moveToDLQQuery = `
WITH moved AS (
	DELETE FROM tasks WHERE id = $1
	RETURNING id, queue, task_type, task_name, payload, signature, priority, error, retry_count
)
INSERT INTO tasks_dlq (id, task_id, queue, task_type, task_name, payload, signature, priority, error, retry_count, failed_at, created_at)
SELECT $2, id, queue, task_type, task_name, payload, signature, priority, COALESCE(error, ''), retry_count, $3, $3
FROM moved`

// MoveToDLQ implements WorkerRepository
func (s *PostgresStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, moveToDLQQuery, taskID, uuid.New(), s.now())
	if err != nil {
		return fmt.Errorf("failed to move task to DLQ: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return nil
}

const extendLockQuery = `
UPDATE tasks SET locked_until = $2
WHERE id = $1 AND status = 'processing'`

// ExtendLock implements WorkerRepository
func (s *PostgresStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	tag, err := s.db.Exec(ctx, extendLockQuery, taskID, s.now().Add(duration))
	if err != nil {
		return fmt.Errorf("failed to extend task lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.stateError(ctx, taskID)
	}
	return nil
}

const lastScheduledAtQuery = `
SELECT max(scheduled_at) FROM tasks
WHERE task_name = $1 AND task_type = 'periodic'`

// LastScheduledAt implements SchedulerRepository
func (s *PostgresStorage) LastScheduledAt(ctx context.Context, taskName string) (time.Time, bool, error) {
	var last *time.Time
	if err := s.db.QueryRow(ctx, lastScheduledAtQuery, taskName).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to load last scheduled time: %w", err)
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

// GetTask returns a stored task
func (s *PostgresStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	task, err := scanTask(s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return task, nil
}

// stateError explains why a state change on a claimed task matched no rows
func (s *PostgresStorage) stateError(ctx context.Context, taskID uuid.UUID) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, taskID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to load task state: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
}

func scanTask(row pgx.Row) (*Task, error) {
	var (
		t                             Task
		taskType, uniqueness, status  string
		priority, retries, maxRetries int16
	)

	err := row.Scan(
		&t.ID, &t.Queue, &taskType, &t.TaskName, &t.Payload, &t.Signature, &uniqueness, &status,
		&priority, &retries, &maxRetries, &t.ScheduledAt, &t.LockedUntil, &t.LockedBy,
		&t.ProcessedAt, &t.Error, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.TaskType = TaskType(taskType)
	t.Uniqueness = Uniqueness(uniqueness)
	t.Status = TaskStatus(status)
	t.Priority = Priority(priority)
	t.RetryCount = int8(retries)
	t.MaxRetries = int8(maxRetries)

	return &t, nil
}
