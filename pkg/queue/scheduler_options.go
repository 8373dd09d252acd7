package queue

import (
	"log/slog"
	"time"
)

// SchedulerOption is a functional option for configuring a scheduler
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	checkInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// WithCheckInterval sets how often scheduler checks for due tasks
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.checkInterval = d
		}
	}
}

// WithSchedulerClock overrides the time source used to evaluate schedules
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(o *schedulerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSchedulerLogger sets the logger for the scheduler
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// SchedulerTaskOption is a functional option for configuring a scheduled task
type SchedulerTaskOption func(*ScheduleEntry)

// WithTaskQueue sets the queue for the scheduled task
func WithTaskQueue(queue string) SchedulerTaskOption {
	return func(e *ScheduleEntry) {
		if queue != "" {
			e.Queue = queue
		}
	}
}

// WithTaskPriority sets the priority for the scheduled task
func WithTaskPriority(priority Priority) SchedulerTaskOption {
	return func(e *ScheduleEntry) {
		if priority.Valid() {
			e.Priority = priority
		}
	}
}

// WithTaskMaxRetries sets the max retries for the scheduled task (0-10)
// Capped at 10 to prevent infinite retry loops on persistent failures
func WithTaskMaxRetries(maxRetries int8) SchedulerTaskOption {
	return func(e *ScheduleEntry) {
		if maxRetries >= 0 && maxRetries <= 10 {
			e.MaxRetries = maxRetries
		}
	}
}

// WithTaskArgs sets the payload passed to the handler on every run
func WithTaskArgs(args map[string]any) SchedulerTaskOption {
	return func(e *ScheduleEntry) {
		e.Args = args
	}
}

// WithTaskUniqueness sets the uniqueness mode of the enqueued tasks
func WithTaskUniqueness(u Uniqueness) SchedulerTaskOption {
	return func(e *ScheduleEntry) {
		e.Uniqueness = u
	}
}
