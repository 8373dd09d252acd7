package queue

import (
	"log/slog"
	"time"
)

// EnqueuerOption is a functional option for configuring an Enqueuer
type EnqueuerOption func(*enqueuerOptions)

type enqueuerOptions struct {
	defaultQueue    string
	defaultPriority Priority
	locker          Locker
	now             func() time.Time
	logger          *slog.Logger
}

// WithDefaultQueue sets the default queue name
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if queue != "" {
			o.defaultQueue = queue
		}
	}
}

// WithDefaultPriority sets the default priority
func WithDefaultPriority(priority Priority) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if priority.Valid() {
			o.defaultPriority = priority
		}
	}
}

// WithEnqueuerLocker makes unique enqueues a no-op while the signature lock
// is held by a running task, including one claimed by another process.
func WithEnqueuerLocker(locker Locker) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if locker != nil {
			o.locker = locker
		}
	}
}

// WithEnqueuerClock overrides the time source used for scheduling
func WithEnqueuerClock(now func() time.Time) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithEnqueuerLogger sets the logger for the enqueuer
func WithEnqueuerLogger(logger *slog.Logger) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// EnqueueOption is a functional option for the Enqueue method
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue       string
	priority    Priority
	maxRetries  int8
	delay       time.Duration
	scheduledAt *time.Time
	taskName    string
	uniqueness  Uniqueness
	periodic    bool
}

// WithQueue sets the lane for the task
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithPriority sets the priority for the task
func WithPriority(priority Priority) EnqueueOption {
	return func(o *enqueueOptions) {
		o.priority = priority
	}
}

// WithMaxRetries sets the maximum number of attempts (0-10)
// Capped at 10 to prevent infinite retry loops on persistent failures
func WithMaxRetries(maxRetries int8) EnqueueOption {
	return func(o *enqueueOptions) {
		if maxRetries >= 0 && maxRetries <= 10 {
			o.maxRetries = maxRetries
		}
	}
}

// WithDelay sets a delay before the task can be processed
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}

// WithScheduledAt sets a specific time for the task to be processed
func WithScheduledAt(scheduledAt time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.scheduledAt = &scheduledAt
	}
}

// WithTaskName sets a custom task name
func WithTaskName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.taskName = name
		}
	}
}

// WithUniqueness sets the uniqueness mode for the task
func WithUniqueness(u Uniqueness) EnqueueOption {
	return func(o *enqueueOptions) {
		o.uniqueness = u
	}
}

// asPeriodic marks the task as created by the scheduler
func asPeriodic() EnqueueOption {
	return func(o *enqueueOptions) {
		o.periodic = true
	}
}
