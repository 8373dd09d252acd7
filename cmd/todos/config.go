package main

import (
	"github.com/dmitrymomot/todokit/modules/prompt"
	"github.com/dmitrymomot/todokit/pkg/httpserver"
	"github.com/dmitrymomot/todokit/pkg/pg"
	"github.com/dmitrymomot/todokit/pkg/queue"
	"github.com/dmitrymomot/todokit/pkg/ratelimiter"
	"github.com/dmitrymomot/todokit/pkg/redis"
)

type appConfig struct {
	Name    string `env:"APP_NAME" envDefault:"Todos"`
	Version string `env:"APP_VERSION" envDefault:"1.0.0"`
	Env     string `env:"APP_ENV" envDefault:"development"`

	LogLevel      string `env:"LOG_LEVEL"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"30"`

	// LockPrefix namespaces uniqueness locks in Redis.
	LockPrefix string `env:"QUEUE_LOCK_PREFIX"`

	PG        pg.Config
	Redis     redis.Config
	Queue     queue.Config
	HTTP      httpserver.Config
	Prompt    prompt.Config
	RateLimit ratelimiter.Config
}
