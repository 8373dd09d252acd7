package todo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/todokit/pkg/logger"
)

const (
	CleanupTaskName = "todo.cleanup"
	CleanupQueue    = "low"
	// DefaultRetentionDays applies when days_old is missing or not positive.
	DefaultRetentionDays = 30
)

// CleanupPayload is the argument set of the retention task. Schedule files
// pass the same shape as args, so both produce the same task signature.
type CleanupPayload struct {
	DaysOld int `json:"days_old"`
}

// CleanupTask deletes completed items that have not been touched for
// days_old days. It is registered with the queue worker under
// CleanupTaskName and is safe to re-run.
type CleanupTask struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

type CleanupOption func(*CleanupTask)

func WithCleanupClock(now func() time.Time) CleanupOption {
	return func(t *CleanupTask) {
		if now != nil {
			t.now = now
		}
	}
}

func WithCleanupLogger(log *slog.Logger) CleanupOption {
	return func(t *CleanupTask) {
		if log != nil {
			t.log = log
		}
	}
}

func NewCleanupTask(store Store, opts ...CleanupOption) (*CleanupTask, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	t := &CleanupTask{store: store, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With(logger.Component("todo_cleanup"))
	return t, nil
}

func (t *CleanupTask) Name() string { return CleanupTaskName }

func (t *CleanupTask) Handle(ctx context.Context, payload json.RawMessage) error {
	var p CleanupPayload
	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", CleanupTaskName, err)
		}
	}
	_, err := t.Run(ctx, p.DaysOld)
	return err
}

// Run deletes completed items with updated_at before now - daysOld days and
// returns how many were removed.
func (t *CleanupTask) Run(ctx context.Context, daysOld int) (int64, error) {
	daysOld = normalizeDaysOld(daysOld)
	cutoff := t.now().AddDate(0, 0, -daysOld)

	n, err := t.store.DeleteWhere(ctx, CompletedBefore(cutoff))
	if err != nil {
		return 0, err
	}

	t.log.InfoContext(ctx, "todo cleanup finished",
		slog.Int64("deleted", n),
		slog.Int("days_old", daysOld),
		slog.Time("cutoff", cutoff))
	return n, nil
}

func normalizeDaysOld(daysOld int) int {
	if daysOld <= 0 {
		return DefaultRetentionDays
	}
	return daysOld
}
