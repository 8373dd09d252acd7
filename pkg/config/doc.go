// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv (optional .env files) and
// github.com/caarlos0/env/v11 (struct tag parsing). Nothing is cached: the
// caller loads once at startup and passes values to constructors.
//
//	type AppConfig struct {
//		Env  string `env:"APP_ENV" envDefault:"development"`
//		Name string `env:"APP_NAME" envDefault:"Todos"`
//	}
//
//	cfg := config.MustLoad[AppConfig]()
//
// Errors are wrapped with ErrParsingConfig or ErrLoadingEnvFile and can be
// checked with errors.Is.
package config
