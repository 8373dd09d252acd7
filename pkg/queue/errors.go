package queue

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrEnqueuerNil is returned when a scheduler is built without an enqueuer
	ErrEnqueuerNil = errors.New("enqueuer cannot be nil")

	// ErrLockerNil is returned when a nil locker is provided
	ErrLockerNil = errors.New("locker cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrInvalidPriority is returned when priority is outside valid range
	ErrInvalidPriority = errors.New("priority must be between 0 and 100")

	// ErrInvalidUniqueness is returned for an unknown uniqueness mode
	ErrInvalidUniqueness = errors.New("unknown uniqueness mode")

	// ErrDuplicateTask is returned by storage when a unique task with the same
	// signature is already pending or processing
	ErrDuplicateTask = errors.New("task with the same signature is already queued")

	// ErrNoTaskToClaim is returned by storage when no task is ready for the requested lanes
	ErrNoTaskToClaim = errors.New("no task available to claim")

	// ErrTaskNotFound is returned when a task id is unknown to storage
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskNotProcessing is returned when a state change requires a claimed task
	ErrTaskNotProcessing = errors.New("task is not in processing state")

	// ErrHandlerNotFound is returned when no handler is registered for a task
	ErrHandlerNotFound = errors.New("no handler registered for task type")

	// ErrNoHandlers is returned when worker has no handlers registered
	ErrNoHandlers = errors.New("no task handlers registered")

	// ErrNoLanes is returned when a worker is configured without lanes
	ErrNoLanes = errors.New("worker has no lanes configured")

	// ErrInvalidLane is returned when a lane definition cannot be parsed
	ErrInvalidLane = errors.New("invalid lane definition")

	// ErrLockHeld is returned when a uniqueness lock is owned by someone else
	ErrLockHeld = errors.New("uniqueness lock is held")

	// ErrLockLost is returned when releasing a lock that expired and was taken over
	ErrLockLost = errors.New("uniqueness lock expired before release")

	// ErrInvalidSchedule is returned when schedule format is invalid
	ErrInvalidSchedule = errors.New("invalid schedule format")

	// ErrInvalidScheduleFile is returned when the schedule file cannot be parsed at all
	ErrInvalidScheduleFile = errors.New("invalid schedule file")

	// ErrTaskAlreadyRegistered is returned when trying to register a duplicate task
	ErrTaskAlreadyRegistered = errors.New("task already registered")

	// ErrSchedulerNotConfigured is returned when scheduler has no tasks
	ErrSchedulerNotConfigured = errors.New("scheduler has no registered tasks")
)
