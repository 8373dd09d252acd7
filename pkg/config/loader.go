package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Load parses environment variables into a new T using `env` and
// `envDefault` struct tags.
//
// Files passed in envFiles are loaded first; with none given, a `.env` file in
// the working directory is loaded if it exists. Variables already present in
// the process environment are never overridden by file values.
//
// Example:
//
//	type DatabaseConfig struct {
//		ConnURL string `env:"PG_CONN_URL,required"`
//		MaxConn int32  `env:"PG_MAX_CONN" envDefault:"10"`
//	}
//
//	cfg, err := config.Load[DatabaseConfig]()
func Load[T any](envFiles ...string) (T, error) {
	var cfg T

	if len(envFiles) == 0 {
		// A missing default .env is fine.
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return cfg, errors.Join(ErrLoadingEnvFile, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad works like Load but panics if configuration loading fails.
// Use it for configuration the process cannot start without.
func MustLoad[T any](envFiles ...string) T {
	cfg, err := Load[T](envFiles...)
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return cfg
}
