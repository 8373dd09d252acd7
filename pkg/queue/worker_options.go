package queue

import (
	"log/slog"
	"time"
)

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	lanes              []Lane
	pullInterval       time.Duration
	lockTimeout        time.Duration
	uniqueLockTTL      time.Duration
	maxConcurrentTasks int
	locker             Locker
	backoff            BackoffFunc
	now                func() time.Time
	logger             *slog.Logger
}

// WithLanes sets the weighted lanes the worker pulls from.
func WithLanes(lanes ...Lane) WorkerOption {
	return func(o *workerOptions) {
		o.lanes = lanes
	}
}

// WithQueues sets which queues the worker should pull from, all with equal weight
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		lanes := make([]Lane, 0, len(queues))
		for _, q := range queues {
			lanes = append(lanes, Lane{Name: q, Weight: 1})
		}
		o.lanes = lanes
	}
}

// WithPullInterval sets how often the worker checks for new tasks
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout sets the lock duration for tasks
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithUniqueLockTTL sets how long a uniqueness lock may be held.
// Defaults to the task lock timeout.
func WithUniqueLockTTL(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.uniqueLockTTL = d
		}
	}
}

// WithMaxConcurrentTasks sets the maximum number of concurrent tasks
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrentTasks = n
		}
	}
}

// WithLocker sets the locker used for unique tasks.
// Workers in different processes need a shared locker such as RedisLocker.
func WithLocker(l Locker) WorkerOption {
	return func(o *workerOptions) {
		if l != nil {
			o.locker = l
		}
	}
}

// WithBackoff sets the retry delay policy.
func WithBackoff(fn BackoffFunc) WorkerOption {
	return func(o *workerOptions) {
		if fn != nil {
			o.backoff = fn
		}
	}
}

// WithWorkerClock overrides the time source used for retry scheduling.
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(o *workerOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
