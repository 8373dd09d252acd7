package queue

import "time"

// Config holds the configuration for the task queue
type Config struct {
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	UniqueLockTTL      time.Duration `env:"QUEUE_UNIQUE_LOCK_TTL" envDefault:"10m"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	Lanes              string        `env:"QUEUE_LANES" envDefault:"critical:6,default:3,low:1"`
	ScheduleFile       string        `env:"QUEUE_SCHEDULE_FILE" envDefault:"config/schedule.yml"`
	SchedulerInterval  time.Duration `env:"QUEUE_SCHEDULER_INTERVAL" envDefault:"30s"`
}
