package queue

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the default queue name used when no queue is specified
const DefaultQueueName = "default"

// TaskType represents the type of task
type TaskType string

const (
	TaskTypeOneTime  TaskType = "one-time"
	TaskTypePeriodic TaskType = "periodic"
)

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Uniqueness controls how long a task signature stays reserved.
type Uniqueness string

const (
	// UniqueNone allows any number of identical tasks.
	UniqueNone Uniqueness = ""
	// UniqueUntilExecuted reserves the signature from enqueue until the
	// handler returns, so at most one instance is queued or running.
	UniqueUntilExecuted Uniqueness = "until_executed"
)

// Valid reports whether u is a known uniqueness mode.
func (u Uniqueness) Valid() bool {
	return u == UniqueNone || u == UniqueUntilExecuted
}

// Priority represents task priority inside a lane (0-100, higher is more important)
type Priority int8

// Priority constants
const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityMedium  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
	PriorityDefault Priority = PriorityMedium
)

// Valid checks if the priority is within valid range
func (p Priority) Valid() bool {
	return p >= PriorityMin && p <= PriorityMax
}

// Task represents a task in the queue
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Queue       string     `json:"queue"`
	TaskType    TaskType   `json:"task_type"`
	TaskName    string     `json:"task_name"`
	Payload     []byte     `json:"payload,omitempty"`
	Signature   string     `json:"signature"`
	Uniqueness  Uniqueness `json:"uniqueness,omitempty"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	RetryCount  int8       `json:"retry_count"`
	MaxRetries  int8       `json:"max_retries"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Unique reports whether the task reserves its signature until executed.
func (t *Task) Unique() bool {
	return t.Uniqueness == UniqueUntilExecuted && t.Signature != ""
}

// exhaustedAfterFailure reports whether one more failure uses up the retry budget.
// Storage implementations and the worker must agree on this rule.
func (t *Task) exhaustedAfterFailure() bool {
	return t.RetryCount+1 >= t.MaxRetries
}

// TasksDlq represents a task in the dead letter queue
// Stores failed tasks that exhausted all retries for manual inspection and recovery
type TasksDlq struct {
	ID         uuid.UUID `json:"id"`
	TaskID     uuid.UUID `json:"task_id"`
	Queue      string    `json:"queue"`
	TaskType   TaskType  `json:"task_type"`
	TaskName   string    `json:"task_name"`
	Payload    []byte    `json:"payload,omitempty"`
	Signature  string    `json:"signature"`
	Priority   Priority  `json:"priority"`
	Error      string    `json:"error"`
	RetryCount int8      `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
	CreatedAt  time.Time `json:"created_at"`
}
