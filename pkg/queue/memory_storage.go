package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements all queue repository interfaces for testing and local development
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
	dlq   map[uuid.UUID]*TasksDlq

	// Indexes for efficient queries
	byQueue  map[string][]uuid.UUID
	byStatus map[TaskStatus][]uuid.UUID
	// active unique tasks (pending or processing) by signature
	bySignature map[string]uuid.UUID

	now func() time.Time

	// Lock management
	lockTicker *time.Ticker
	done       chan struct{}
	closeOnce  sync.Once
}

// MemoryStorageOption configures MemoryStorage
type MemoryStorageOption func(*MemoryStorage)

// WithMemoryClock overrides the time source, mostly for tests
func WithMemoryClock(now func() time.Time) MemoryStorageOption {
	return func(ms *MemoryStorage) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStorage creates a new in-memory storage implementation
func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	ms := &MemoryStorage{
		tasks:       make(map[uuid.UUID]*Task),
		dlq:         make(map[uuid.UUID]*TasksDlq),
		byQueue:     make(map[string][]uuid.UUID),
		byStatus:    make(map[TaskStatus][]uuid.UUID),
		bySignature: make(map[string]uuid.UUID),
		now:         time.Now,
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ms)
	}

	// Start lock expiration manager
	ms.lockTicker = time.NewTicker(time.Second)
	go ms.lockExpirationManager()

	return ms
}

// Close stops the background goroutines
func (ms *MemoryStorage) Close() error {
	ms.closeOnce.Do(func() {
		close(ms.done)
		ms.lockTicker.Stop()
	})
	return nil
}

// CreateTask implements EnqueuerRepository
func (ms *MemoryStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}

	if task.Unique() {
		if _, taken := ms.bySignature[task.Signature]; taken {
			return ErrDuplicateTask
		}
		ms.bySignature[task.Signature] = task.ID
	}

	// Clone task to prevent external modifications
	taskCopy := *task
	ms.tasks[task.ID] = &taskCopy

	ms.byQueue[task.Queue] = append(ms.byQueue[task.Queue], task.ID)
	ms.byStatus[task.Status] = append(ms.byStatus[task.Status], task.ID)

	return nil
}

// ClaimTask implements WorkerRepository.
// Queues are tried in the given order; inside a queue the highest priority
// wins and the earliest scheduled time breaks ties.
func (ms *MemoryStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()

	for _, queue := range queues {
		var bestTask *Task

		for _, taskID := range ms.byQueue[queue] {
			task := ms.tasks[taskID]

			if task.Status != TaskStatusPending {
				continue
			}

			// Delayed or backing off
			if task.ScheduledAt.After(now) {
				continue
			}

			if bestTask == nil ||
				task.Priority > bestTask.Priority ||
				(task.Priority == bestTask.Priority && task.ScheduledAt.Before(bestTask.ScheduledAt)) {
				bestTask = task
			}
		}

		if bestTask == nil {
			continue
		}

		lockUntil := now.Add(lockDuration)
		bestTask.Status = TaskStatusProcessing
		bestTask.LockedUntil = &lockUntil
		bestTask.LockedBy = &workerID

		ms.removeFromStatusIndex(bestTask.ID, TaskStatusPending)
		ms.byStatus[TaskStatusProcessing] = append(ms.byStatus[TaskStatusProcessing], bestTask.ID)

		// Return a copy to prevent external modifications
		taskCopy := *bestTask
		return &taskCopy, nil
	}

	return nil, ErrNoTaskToClaim
}

// CompleteTask implements WorkerRepository
func (ms *MemoryStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID)
	if err != nil {
		return err
	}

	now := ms.now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil

	ms.removeFromStatusIndex(taskID, TaskStatusProcessing)
	ms.byStatus[TaskStatusCompleted] = append(ms.byStatus[TaskStatusCompleted], taskID)
	ms.releaseSignature(task)

	return nil
}

// ReleaseTask implements WorkerRepository
func (ms *MemoryStorage) ReleaseTask(ctx context.Context, taskID uuid.UUID, at time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID)
	if err != nil {
		return err
	}

	// Retry count and signature reservation stay untouched.
	task.Status = TaskStatusPending
	task.ScheduledAt = at
	task.LockedUntil = nil
	task.LockedBy = nil

	ms.removeFromStatusIndex(taskID, TaskStatusProcessing)
	ms.byStatus[TaskStatusPending] = append(ms.byStatus[TaskStatusPending], taskID)

	return nil
}

// FailTask implements WorkerRepository
func (ms *MemoryStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string, retryAt time.Time) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID)
	if err != nil {
		return err
	}

	exhausted := task.exhaustedAfterFailure()
	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil
	ms.removeFromStatusIndex(taskID, TaskStatusProcessing)

	if exhausted {
		task.Status = TaskStatusFailed
		ms.byStatus[TaskStatusFailed] = append(ms.byStatus[TaskStatusFailed], taskID)
		ms.releaseSignature(task)
		return nil
	}

	task.Status = TaskStatusPending
	task.ScheduledAt = retryAt
	ms.byStatus[TaskStatusPending] = append(ms.byStatus[TaskStatusPending], taskID)

	return nil
}

// MoveToDLQ implements WorkerRepository
func (ms *MemoryStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	now := ms.now()
	dlqEntry := &TasksDlq{
		ID:         uuid.New(),
		TaskID:     task.ID,
		Queue:      task.Queue,
		TaskType:   task.TaskType,
		TaskName:   task.TaskName,
		Payload:    task.Payload,
		Signature:  task.Signature,
		Priority:   task.Priority,
		RetryCount: task.RetryCount,
		FailedAt:   now,
		CreatedAt:  now,
	}

	if task.Error != nil {
		dlqEntry.Error = *task.Error
	}

	ms.dlq[dlqEntry.ID] = dlqEntry

	ms.removeFromStatusIndex(taskID, task.Status)
	ms.removeFromQueueIndex(taskID, task.Queue)
	ms.releaseSignature(task)
	delete(ms.tasks, taskID)

	return nil
}

// ExtendLock implements WorkerRepository
func (ms *MemoryStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, err := ms.processingTask(taskID)
	if err != nil {
		return err
	}

	lockUntil := ms.now().Add(duration)
	task.LockedUntil = &lockUntil

	return nil
}

// LastScheduledAt implements SchedulerRepository
func (ms *MemoryStorage) LastScheduledAt(ctx context.Context, taskName string) (time.Time, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var last time.Time
	found := false
	for _, task := range ms.tasks {
		if task.TaskName != taskName || task.TaskType != TaskTypePeriodic {
			continue
		}
		if !found || task.ScheduledAt.After(last) {
			last = task.ScheduledAt
			found = true
		}
	}

	return last, found, nil
}

// GetTask returns a copy of a stored task
func (ms *MemoryStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	task, ok := ms.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	taskCopy := *task
	return &taskCopy, nil
}

// ListTasks returns copies of all tasks with the given name, oldest first
func (ms *MemoryStorage) ListTasks(ctx context.Context, taskName string) ([]*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var tasks []*Task
	for _, task := range ms.tasks {
		if task.TaskName == taskName {
			taskCopy := *task
			tasks = append(tasks, &taskCopy)
		}
	}
	slices.SortFunc(tasks, func(a, b *Task) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return tasks, nil
}

// ListDLQ returns copies of dead-lettered tasks
func (ms *MemoryStorage) ListDLQ(ctx context.Context) ([]*TasksDlq, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	entries := make([]*TasksDlq, 0, len(ms.dlq))
	for _, entry := range ms.dlq {
		entryCopy := *entry
		entries = append(entries, &entryCopy)
	}
	slices.SortFunc(entries, func(a, b *TasksDlq) int { return a.FailedAt.Compare(b.FailedAt) })
	return entries, nil
}

// Helper methods

func (ms *MemoryStorage) processingTask(taskID uuid.UUID) (*Task, error) {
	task, exists := ms.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if task.Status != TaskStatusProcessing {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}
	return task, nil
}

func (ms *MemoryStorage) releaseSignature(task *Task) {
	if id, ok := ms.bySignature[task.Signature]; ok && id == task.ID {
		delete(ms.bySignature, task.Signature)
	}
}

func (ms *MemoryStorage) removeFromStatusIndex(taskID uuid.UUID, status TaskStatus) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == taskID
	})
}

func (ms *MemoryStorage) removeFromQueueIndex(taskID uuid.UUID, queue string) {
	ms.byQueue[queue] = slices.DeleteFunc(ms.byQueue[queue], func(id uuid.UUID) bool {
		return id == taskID
	})
}

// lockExpirationManager recovers tasks claimed by workers that died.
// The claim lock duration must exceed the expected task run time, otherwise
// a slow but healthy task is handed to a second worker.
func (ms *MemoryStorage) lockExpirationManager() {
	for {
		select {
		case <-ms.lockTicker.C:
			ms.expireLocks()
		case <-ms.done:
			return
		}
	}
}

// expireLocks resets processing tasks with an expired claim back to pending.
// The retry count is kept and the signature stays reserved.
func (ms *MemoryStorage) expireLocks() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	for _, taskID := range slices.Clone(ms.byStatus[TaskStatusProcessing]) {
		task := ms.tasks[taskID]
		if task.LockedUntil != nil && task.LockedUntil.Before(now) {
			task.Status = TaskStatusPending
			task.LockedUntil = nil
			task.LockedBy = nil

			ms.removeFromStatusIndex(taskID, TaskStatusProcessing)
			ms.byStatus[TaskStatusPending] = append(ms.byStatus[TaskStatusPending], taskID)
		}
	}
}
