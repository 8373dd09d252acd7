package queue

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule determines when a periodic task should run
type Schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// intervalSchedule runs at fixed intervals
type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(from time.Time) time.Time {
	return from.Add(s.every)
}

func (s intervalSchedule) String() string {
	return fmt.Sprintf("every %v", s.every)
}

// EveryInterval creates a schedule that runs at fixed intervals
func EveryInterval(d time.Duration) Schedule {
	return intervalSchedule{every: d}
}

// cronSchedule wraps a parsed five-field cron expression
type cronSchedule struct {
	expr  string
	sched cron.Schedule
}

func (s cronSchedule) Next(from time.Time) time.Time {
	return s.sched.Next(from)
}

func (s cronSchedule) String() string {
	return s.expr
}

// ParseCron parses a standard cron expression ("minute hour dom month dow")
// or a descriptor such as "@daily" or "@every 1h".
func ParseCron(expr string) (Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, expr, err)
	}
	return cronSchedule{expr: expr, sched: sched}, nil
}
