package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option adjusts where Load reads variables from.
type Option func(*options)

type options struct {
	files    []string
	optional bool
	prefix   string
	environ  map[string]string
}

// WithEnvFiles merges the given dotenv files under the process environment.
// Variables already set in the process win. Missing files are an error.
func WithEnvFiles(files ...string) Option {
	return func(o *options) {
		o.files = append(o.files, files...)
	}
}

// WithOptionalEnvFiles behaves like WithEnvFiles but skips missing files.
func WithOptionalEnvFiles(files ...string) Option {
	return func(o *options) {
		o.files = append(o.files, files...)
		o.optional = true
	}
}

// WithPrefix requires every variable to carry prefix, e.g. "FLAGD_".
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithEnviron replaces the process environment with vars.
// Dotenv files are still merged underneath.
func WithEnviron(vars map[string]string) Option {
	return func(o *options) {
		o.environ = maps.Clone(vars)
		if o.environ == nil {
			o.environ = map[string]string{}
		}
	}
}

// Load parses a T from the environment using `env` and `envDefault` struct tags.
//
//	type serverConfig struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	cfg, err := config.Load[serverConfig](config.WithOptionalEnvFiles(".env"))
func Load[T any](opts ...Option) (T, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	environ := maps.Clone(o.environ)
	if environ == nil {
		environ = processEnviron()
	}

	for _, file := range o.files {
		vars, err := godotenv.Read(file)
		if err != nil {
			if o.optional && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			var zero T
			return zero, errors.Join(ErrReadingEnvFile, fmt.Errorf("%s: %w", file, err))
		}
		for k, v := range vars {
			if _, set := environ[k]; !set {
				environ[k] = v
			}
		}
	}

	cfg, err := env.ParseAsWithOptions[T](env.Options{
		Environment: environ,
		Prefix:      o.prefix,
	})
	if err != nil {
		var zero T
		return zero, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad works like Load but panics on failure.
// Use it for configuration the process cannot start without.
func MustLoad[T any](opts ...Option) T {
	cfg, err := Load[T](opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
	return cfg
}

// Cached returns a loader that parses T once and hands back the same result
// on every later call, including a failure.
func Cached[T any](opts ...Option) func() (T, error) {
	return sync.OnceValues(func() (T, error) {
		return Load[T](opts...)
	})
}

func processEnviron() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			vars[k] = v
		}
	}
	return vars
}
