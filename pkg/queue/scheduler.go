package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// TaskEnqueuer is the part of Enqueuer the scheduler depends on
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) (*Task, error)
}

// SchedulerRepository defines the interface for scheduler operations
type SchedulerRepository interface {
	// LastScheduledAt returns the scheduled time of the newest periodic task
	// with the given name, and false if there is none.
	LastScheduledAt(ctx context.Context, taskName string) (time.Time, bool, error)
}

// ScheduleEntry binds a recurrence to a task definition.
// Zero Priority and MaxRetries fall back to the enqueuer defaults.
type ScheduleEntry struct {
	Name       string
	Cron       string
	Task       string
	Queue      string
	Priority   Priority
	MaxRetries int8
	Args       map[string]any
	Uniqueness Uniqueness
	// Schedule is parsed from Cron when nil.
	Schedule Schedule
}

// Scheduler enqueues periodic tasks at their due times
type Scheduler struct {
	enqueuer TaskEnqueuer
	repo     SchedulerRepository
	entries  []*scheduledEntry
	mu       sync.RWMutex
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type scheduledEntry struct {
	ScheduleEntry
	next time.Time
}

// NewScheduler creates a new task scheduler
func NewScheduler(enqueuer TaskEnqueuer, repo SchedulerRepository, opts ...SchedulerOption) (*Scheduler, error) {
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &schedulerOptions{
		checkInterval: 30 * time.Second,
		now:           time.Now,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		enqueuer: enqueuer,
		repo:     repo,
		interval: options.checkInterval,
		now:      options.now,
		logger:   options.logger,
	}, nil
}

// AddEntry registers a schedule entry. Entries are evaluated in the order
// they were added.
func (s *Scheduler) AddEntry(entry ScheduleEntry) error {
	if entry.Name == "" {
		return fmt.Errorf("%w: entry name is required", ErrInvalidSchedule)
	}
	if entry.Task == "" {
		entry.Task = entry.Name
	}
	if entry.Queue == "" {
		entry.Queue = DefaultQueueName
	}
	if !entry.Priority.Valid() {
		return ErrInvalidPriority
	}
	if !entry.Uniqueness.Valid() {
		return ErrInvalidUniqueness
	}
	if entry.Schedule == nil {
		sched, err := ParseCron(entry.Cron)
		if err != nil {
			return err
		}
		entry.Schedule = sched
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.ContainsFunc(s.entries, func(e *scheduledEntry) bool { return e.Name == entry.Name }) {
		return fmt.Errorf("%w: %s", ErrTaskAlreadyRegistered, entry.Name)
	}

	s.entries = append(s.entries, &scheduledEntry{ScheduleEntry: entry})

	s.logger.Info("registered periodic task",
		slog.String("entry", entry.Name),
		slog.String("task_name", entry.Task),
		slog.String("queue", entry.Queue),
		slog.String("schedule", entry.Schedule.String()))

	return nil
}

// AddTask registers a periodic task named after its handler
func (s *Scheduler) AddTask(name string, schedule Schedule, opts ...SchedulerTaskOption) error {
	entry := ScheduleEntry{
		Name:     name,
		Task:     name,
		Schedule: schedule,
	}
	for _, opt := range opts {
		opt(&entry)
	}
	return s.AddEntry(entry)
}

// RemoveTask removes a schedule entry
func (s *Scheduler) RemoveTask(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = slices.DeleteFunc(s.entries, func(e *scheduledEntry) bool { return e.Name == name })

	s.logger.Info("removed periodic task",
		slog.String("entry", name))
}

// ListTasks returns the names of all entries in registration order
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.Name)
	}
	return names
}

// Start evaluates entries until ctx is done.
//
// On start each entry whose window passed while the process was down gets a
// single catch-up run, no matter how many windows were missed.
func (s *Scheduler) Start(ctx context.Context) error {
	entries := s.snapshot()
	if len(entries) == 0 {
		return ErrSchedulerNotConfigured
	}

	now := s.now()
	for _, e := range entries {
		s.prime(ctx, e, now)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Check immediately on start
	s.checkEntries(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.checkEntries(ctx)
		}
	}
}

// Run starts the scheduler and returns a function suitable for errgroup
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func (s *Scheduler) snapshot() []*scheduledEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries)
}

// prime sets the first due time of an entry from the last run on record
func (s *Scheduler) prime(ctx context.Context, e *scheduledEntry, now time.Time) {
	next := e.Schedule.Next(now)

	last, ok, err := s.repo.LastScheduledAt(ctx, e.Task)
	switch {
	case err != nil:
		s.logger.Warn("failed to load last run of periodic task, skipping catch-up",
			slog.String("entry", e.Name),
			slog.String("error", err.Error()))
	case ok:
		if due := e.Schedule.Next(last); !due.IsZero() && !due.After(now) {
			s.logger.Info("periodic task missed its window, catching up once",
				slog.String("entry", e.Name),
				slog.Time("last_run", last),
				slog.Time("missed", due))
			next = now
		}
	}

	s.setNext(e, next)
}

// checkEntries enqueues every entry that is due
func (s *Scheduler) checkEntries(ctx context.Context) {
	now := s.now()

	for _, e := range s.snapshot() {
		next := s.getNext(e)
		if next.IsZero() || next.After(now) {
			continue
		}

		if err := s.enqueue(ctx, e, now); err != nil {
			s.logger.Error("failed to schedule task",
				slog.String("entry", e.Name),
				slog.String("task_name", e.Task),
				slog.String("error", err.Error()))
			continue
		}

		// Next window counts from now so missed windows never pile up
		s.setNext(e, e.Schedule.Next(now))
	}
}

func (s *Scheduler) enqueue(ctx context.Context, e *scheduledEntry, now time.Time) error {
	opts := []EnqueueOption{
		asPeriodic(),
		WithTaskName(e.Task),
		WithQueue(e.Queue),
		WithUniqueness(e.Uniqueness),
		WithScheduledAt(now),
	}
	if e.Priority != 0 {
		opts = append(opts, WithPriority(e.Priority))
	}
	if e.MaxRetries > 0 {
		opts = append(opts, WithMaxRetries(e.MaxRetries))
	}

	args := e.Args
	if args == nil {
		args = map[string]any{}
	}

	task, err := s.enqueuer.Enqueue(ctx, args, opts...)
	if err != nil {
		return err
	}

	if task == nil {
		s.logger.Info("periodic task already queued or running",
			slog.String("entry", e.Name),
			slog.String("task_name", e.Task))
		return nil
	}

	s.logger.Info("created periodic task",
		slog.String("entry", e.Name),
		slog.String("task_name", e.Task),
		slog.String("task_id", task.ID.String()),
		slog.String("queue", e.Queue),
		slog.Time("scheduled_for", now))

	return nil
}

func (s *Scheduler) getNext(e *scheduledEntry) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return e.next
}

func (s *Scheduler) setNext(e *scheduledEntry, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.next = next
}
