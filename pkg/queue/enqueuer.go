package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository defines the interface for task creation.
// CreateTask must return ErrDuplicateTask, without storing anything, when
// task.Unique() and another unique task with the same signature is pending
// or processing.
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// Enqueuer handles task enqueueing
type Enqueuer struct {
	repo            EnqueuerRepository
	locker          Locker
	defaultQueue    string
	defaultPriority Priority
	now             func() time.Time
	logger          *slog.Logger
}

// NewEnqueuer creates a new Enqueuer
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{
		defaultQueue:    DefaultQueueName,
		defaultPriority: PriorityDefault,
		now:             time.Now,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		repo:            repo,
		locker:          options.locker,
		defaultQueue:    options.defaultQueue,
		defaultPriority: options.defaultPriority,
		now:             options.now,
		logger:          options.logger,
	}, nil
}

// Enqueue adds a new task to the queue.
//
// For unique tasks a nil task with a nil error means an equivalent task is
// already queued or executing and nothing was added.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (*Task, error) {
	if payload == nil {
		return nil, ErrPayloadNil
	}

	options := &enqueueOptions{
		queue:      e.defaultQueue,
		priority:   e.defaultPriority,
		maxRetries: 3,
	}

	for _, opt := range opts {
		opt(options)
	}

	if !options.priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if !options.uniqueness.Valid() {
		return nil, ErrInvalidUniqueness
	}

	task, err := e.buildTask(payload, options)
	if err != nil {
		return nil, err
	}

	if task.Unique() && e.locker != nil {
		locked, err := e.locker.Locked(ctx, task.Signature)
		if err != nil {
			return nil, fmt.Errorf("failed to check uniqueness lock for task %q: %w", task.TaskName, err)
		}
		if locked {
			e.logDuplicate(ctx, task, "signature lock held")
			return nil, nil
		}
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		if errors.Is(err, ErrDuplicateTask) {
			e.logDuplicate(ctx, task, "already queued")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create task %q in queue %q: %w", task.TaskName, task.Queue, err)
	}

	return task, nil
}

func (e *Enqueuer) logDuplicate(ctx context.Context, task *Task, reason string) {
	e.logger.DebugContext(ctx, "skipped duplicate unique task",
		slog.String("task_name", task.TaskName),
		slog.String("queue", task.Queue),
		slog.String("signature", task.Signature),
		slog.String("reason", reason))
}

// buildTask constructs a Task from payload and options
func (e *Enqueuer) buildTask(payload any, options *enqueueOptions) (*Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	taskName := options.taskName
	if taskName == "" {
		taskName = qualifiedStructName(payload)
	}

	taskType := TaskTypeOneTime
	if options.periodic {
		taskType = TaskTypePeriodic
	}

	now := e.now()
	scheduledAt := now
	if options.scheduledAt != nil {
		scheduledAt = *options.scheduledAt
	} else if options.delay > 0 {
		scheduledAt = scheduledAt.Add(options.delay)
	}

	return &Task{
		ID:          uuid.New(),
		Queue:       options.queue,
		TaskType:    taskType,
		TaskName:    taskName,
		Payload:     payloadBytes,
		Signature:   Signature(taskName, payloadBytes),
		Uniqueness:  options.uniqueness,
		Status:      TaskStatusPending,
		Priority:    options.priority,
		RetryCount:  0,
		MaxRetries:  options.maxRetries,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
	}, nil
}
