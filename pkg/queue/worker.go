package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerRepository defines the interface for worker operations
type WorkerRepository interface {
	// ClaimTask atomically claims the next available task, trying queues in order
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)

	// CompleteTask marks task as completed
	CompleteTask(ctx context.Context, taskID uuid.UUID) error

	// ReleaseTask returns a claimed task to pending at the given time without
	// touching its retry count.
	ReleaseTask(ctx context.Context, taskID uuid.UUID, at time.Time) error

	// FailTask records the error and increments retry count. A task with
	// retries left goes back to pending at retryAt, otherwise it is failed.
	FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string, retryAt time.Time) error

	// MoveToDLQ moves task to dead letter queue
	MoveToDLQ(ctx context.Context, taskID uuid.UUID) error

	// ExtendLock extends the lock timeout for long-running tasks (optional)
	ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error
}

// BackoffFunc returns the delay before the given retry attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff waits step per attempt and never more than limit.
func LinearBackoff(step, limit time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return min(time.Duration(max(attempt, 1))*step, limit)
	}
}

// Worker processes tasks from the queue
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	lanes    []Lane
	rotation *laneRotation
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // Protects stopping state and WaitGroup operations

	// Configuration
	pullInterval  time.Duration
	lockTimeout   time.Duration
	uniqueLockTTL time.Duration
	locker        Locker
	backoff       BackoffFunc
	now           func() time.Time
	logger        *slog.Logger

	// State management
	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a new task worker
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		lanes:              []Lane{{Name: DefaultQueueName, Weight: 1}},
		pullInterval:       5 * time.Second,
		lockTimeout:        5 * time.Minute,
		maxConcurrentTasks: 1,
		backoff:            LinearBackoff(30*time.Second, 10*time.Minute),
		now:                time.Now,
		logger:             slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	if len(options.lanes) == 0 {
		return nil, ErrNoLanes
	}
	if options.uniqueLockTTL <= 0 {
		options.uniqueLockTTL = options.lockTimeout
	}
	if options.locker == nil {
		options.locker = NewMemoryLocker(options.now)
	}

	return &Worker{
		repo:          repo,
		handlers:      make(map[string]Handler),
		lanes:         options.lanes,
		rotation:      newLaneRotation(options.lanes),
		workerID:      uuid.New(),
		sem:           make(chan struct{}, options.maxConcurrentTasks),
		pullInterval:  options.pullInterval,
		lockTimeout:   options.lockTimeout,
		uniqueLockTTL: options.uniqueLockTTL,
		locker:        options.locker,
		backoff:       options.backoff,
		now:           options.now,
		logger:        options.logger,
	}, nil
}

// RegisterHandler registers a single task handler
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.handlers[handler.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrTaskAlreadyRegistered, handler.Name())
	}
	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers multiple task handlers
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing tasks in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}

	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("lanes", w.lanes),
		slog.Int("max_concurrent", cap(w.sem)))

	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}

	// Use stopMu to synchronize with run() goroutine
	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	w.logger.Info("worker stopping, waiting for active tasks to complete",
		slog.String("worker_id", w.workerID.String()))

	w.wg.Wait()

	w.logger.Info("worker stopped",
		slog.String("worker_id", w.workerID.String()))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// run is the main processing loop
func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				// Use stopMu to ensure we don't add to WaitGroup after Stop() starts
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if err := w.pullAndProcess(); err != nil {
						if !errors.Is(err, ErrHandlerNotFound) {
							w.logger.Error("failed to process task",
								slog.String("worker_id", w.workerID.String()),
								slog.String("error", err.Error()))
						}
					}
				}()
			default:
				w.logger.Debug("all worker slots busy, skipping tick",
					slog.String("worker_id", w.workerID.String()))
			}
		}
	}
}

// pullAndProcess pulls a task and processes it
func (w *Worker) pullAndProcess() error {
	lanes := w.rotation.next()

	task, err := w.repo.ClaimTask(w.ctx, w.workerID, lanes, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) {
			return nil
		}
		return fmt.Errorf("failed to claim task: %w", err)
	}

	if task == nil {
		return nil
	}

	w.logger.Debug("claimed task",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue))

	return w.processTask(task)
}

// processTask executes a task with its handler
func (w *Worker) processTask(task *Task) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("worker_id", w.workerID.String()),
				slog.String("task_id", task.ID.String()),
				slog.String("task_name", task.TaskName),
				slog.Any("panic", r))
			_ = w.handleTaskFailure(task, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(task)
	}

	// Not tied to the worker lifecycle so a graceful shutdown lets tasks finish
	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	run := func(ctx context.Context) error {
		return handler.Handle(ctx, task.Payload)
	}

	var err error
	if task.Unique() {
		err = WithUniquenessLock(ctx, w.locker, task.Signature, w.uniqueLockTTL, run)
		if errors.Is(err, ErrLockHeld) {
			return w.handleTaskDeferred(task)
		}
	} else {
		err = run(ctx)
	}
	duration := time.Since(start)

	if err != nil {
		return w.handleTaskFailure(task, err, duration)
	}

	return w.handleTaskSuccess(task, duration)
}

// storeCtx keeps bookkeeping writes alive while the worker is stopping.
func (w *Worker) storeCtx() context.Context {
	return context.WithoutCancel(w.ctx)
}

// handleMissingHandler moves tasks without a handler straight to the DLQ;
// retrying cannot help until a handler is deployed.
func (w *Worker) handleMissingHandler(task *Task) error {
	w.logger.Error("no handler registered for task type",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName))

	ctx := w.storeCtx()
	errorMsg := "no handler registered for task type: " + task.TaskName
	retryAt := w.now().Add(w.backoff(int(task.RetryCount) + 1))
	if err := w.repo.FailTask(ctx, task.ID, errorMsg, retryAt); err != nil {
		return fmt.Errorf("failed to mark task %s as failed: %w", task.ID, err)
	}

	if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to move task %s to DLQ: %w", task.ID, err)
	}

	return ErrHandlerNotFound
}

// handleTaskDeferred puts a unique task back to pending while another
// execution holds its signature lock. Retry count and signature reservation
// are left as they are.
func (w *Worker) handleTaskDeferred(task *Task) error {
	retryAt := w.now().Add(w.backoff(1))
	if err := w.repo.ReleaseTask(w.storeCtx(), task.ID, retryAt); err != nil {
		return fmt.Errorf("failed to release deferred task %s: %w", task.ID, err)
	}

	w.logger.Info("uniqueness lock held, task deferred",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("signature", task.Signature),
		slog.Time("retry_at", retryAt))

	return nil
}

// handleTaskFailure records the failure; the storage either reschedules the
// task after a backoff or marks it failed, in which case it goes to the DLQ.
func (w *Worker) handleTaskFailure(task *Task, execErr error, duration time.Duration) error {
	exhausted := task.exhaustedAfterFailure()
	attempt := int(task.RetryCount) + 1

	w.logger.Error("task failed",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.Int("attempt", attempt),
		slog.Int("max_retries", int(task.MaxRetries)),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	ctx := w.storeCtx()
	retryAt := w.now().Add(w.backoff(attempt))
	if err := w.repo.FailTask(ctx, task.ID, execErr.Error(), retryAt); err != nil {
		return fmt.Errorf("failed to update task %s status to failed: %w", task.ID, err)
	}

	if !exhausted {
		return nil
	}

	if err := w.repo.MoveToDLQ(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to move task %s to DLQ after max retries: %w", task.ID, err)
	}

	w.logger.Warn("task moved to dead letter queue",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName))

	return nil
}

// handleTaskSuccess processes successful task completion
func (w *Worker) handleTaskSuccess(task *Task, duration time.Duration) error {
	if err := w.repo.CompleteTask(w.storeCtx(), task.ID); err != nil {
		return fmt.Errorf("failed to mark task %s as completed: %w", task.ID, err)
	}

	w.logger.Info("task completed successfully",
		slog.String("worker_id", w.workerID.String()),
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue),
		slog.Duration("duration", duration))

	return nil
}

// ExtendLockForTask extends the lock timeout for a long-running task
// This should be called periodically for tasks that take longer than lockTimeout
func (w *Worker) ExtendLockForTask(ctx context.Context, taskID uuid.UUID, extension time.Duration) error {
	return w.repo.ExtendLock(ctx, taskID, extension)
}

// WorkerInfo returns information about the worker
func (w *Worker) WorkerInfo() (id string, hostname string, pid int) {
	hostname, _ = os.Hostname()
	return w.workerID.String(), hostname, os.Getpid()
}
