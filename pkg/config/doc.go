// Package config loads typed configuration from environment variables.
//
// It wraps github.com/caarlos0/env/v11 for struct tag parsing and
// github.com/joho/godotenv for dotenv files. Process variables always take
// precedence over values read from files, so a deployment can override a
// checked-in .env without editing it.
//
// # Usage
//
//	type appConfig struct {
//		Env      string `env:"APP_ENV" envDefault:"prod"`
//		LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
//
//	cfg, err := config.Load[appConfig](config.WithOptionalEnvFiles(".env"))
//
// WithEnviron swaps the process environment for a fixed map, which keeps
// tests hermetic. Cached memoises a loader for values read many times.
package config
