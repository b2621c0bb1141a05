package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/restorelab/flagkit/pkg/config"
	"github.com/restorelab/flagkit/pkg/cookie"
	"github.com/restorelab/flagkit/pkg/environment"
	"github.com/restorelab/flagkit/pkg/feature"
	"github.com/restorelab/flagkit/pkg/httpserver"
	"github.com/restorelab/flagkit/pkg/logger"
	"github.com/restorelab/flagkit/pkg/requestid"
)

//go:embed features.yaml
var defaultRegistry []byte

var version = "dev"

type appConfig struct {
	Env          string `env:"APP_ENV"`
	Name         string `env:"APP_NAME" envDefault:"flagd"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"text"`
	FeaturesFile string `env:"FEATURES_FILE"`
	OverridesDir string `env:"OVERRIDES_DIR" envDefault:".flagkit"`

	HTTP   httpserver.Config
	Cookie cookie.Config
}

// app carries state shared by every command.
type app struct {
	configOpts []config.Option
	cfg        appConfig
	log        *slog.Logger
}

func newApp() *app {
	return &app{configOpts: []config.Option{config.WithOptionalEnvFiles(".env")}}
}

func (a *app) loadConfig() error {
	cfg, err := config.Load[appConfig](a.configOpts...)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) setupLogger(w io.Writer) error {
	level, err := logger.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return err
	}

	format := logger.Format(a.cfg.LogFormat)
	if format != logger.FormatJSON && format != logger.FormatText {
		return fmt.Errorf("invalid log format %q", a.cfg.LogFormat)
	}

	a.log = logger.New(
		logger.WithLevel(level),
		logger.WithFormat(format),
		logger.WithOutput(w),
		logger.WithAttr(logger.Service(a.cfg.Name)),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			environment.LoggerExtractor(),
		),
	)
	return nil
}

// envFromHost makes serve derive the environment from each request's host.
// One-shot commands treat it as production.
const envFromHost = "auto"

// environment returns the configured environment and whether serve should
// derive it per request from the host instead. An unset environment means
// production.
func (a *app) environment() (environment.Environment, bool, error) {
	switch a.cfg.Env {
	case "":
		return environment.Production, false, nil
	case envFromHost:
		return environment.Production, true, nil
	}
	env, ok := environment.Parse(a.cfg.Env)
	if !ok {
		return "", false, fmt.Errorf("unknown environment %q", a.cfg.Env)
	}
	return env, false, nil
}

func (a *app) registry() (*feature.Registry, error) {
	opts := []feature.RegistryOption{feature.WithRegistryLogger(a.log)}
	if a.cfg.FeaturesFile != "" {
		return feature.LoadRegistryFile(a.cfg.FeaturesFile, opts...)
	}
	return feature.ParseRegistry(defaultRegistry, opts...)
}

// localEngine builds an engine for one-shot commands. Development keeps
// overrides in files under OverridesDir.
func (a *app) localEngine(ctx context.Context) (context.Context, *feature.Engine, error) {
	env, _, err := a.environment()
	if err != nil {
		return ctx, nil, err
	}
	reg, err := a.registry()
	if err != nil {
		return ctx, nil, err
	}

	opts := []feature.EngineOption{
		feature.WithEnvironment(env),
		feature.WithLogger(a.log),
	}
	if env == environment.Development {
		storage, err := feature.NewFileStorage(a.cfg.OverridesDir)
		if err != nil {
			return ctx, nil, err
		}
		opts = append(opts, feature.WithOverrideStorage(storage))
	}

	engine, err := feature.NewEngine(reg, opts...)
	if err != nil {
		return ctx, nil, err
	}
	return environment.WithContext(ctx, env), engine, nil
}

// mutableOverrides returns the override layer when it accepts writes.
func (a *app) mutableOverrides(ctx context.Context, engine *feature.Engine) (*feature.Overrides, error) {
	overrides := engine.Overrides()
	if overrides == nil || !overrides.Active(ctx) {
		env := engine.Environment(ctx)
		a.log.WarnContext(ctx, "feature override command ignored", logger.Error(feature.ErrOverridesDisabled))
		return nil, errors.Join(feature.ErrOverridesDisabled, fmt.Errorf("current environment is %s", env))
	}
	return overrides, nil
}
