package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/restorelab/flagkit/pkg/cookie"
	"github.com/restorelab/flagkit/pkg/environment"
	"github.com/restorelab/flagkit/pkg/feature"
	"github.com/restorelab/flagkit/pkg/featureapi"
	"github.com/restorelab/flagkit/pkg/featuremetrics"
	"github.com/restorelab/flagkit/pkg/featurewatch"
	"github.com/restorelab/flagkit/pkg/httpserver"
	"github.com/restorelab/flagkit/pkg/logger"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feature API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.HTTP.Addr = addr
			}

			svc, err := a.newService(watch)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			srv := httpserver.NewFromConfig(a.cfg.HTTP, httpserver.WithLogger(a.log))
			g.Go(func() error { return srv.Run(ctx, svc.handler) })
			if svc.reloader != nil {
				g.Go(func() error { return svc.reloader.Run(ctx) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address (env HTTP_ADDR)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the registry when the features file changes (dev only)")
	return cmd
}

var errWatchOutsideDev = errors.New("--watch is only available in development")

type service struct {
	handler  http.Handler
	reloader *featurewatch.Reloader
}

// newService wires the engine, override cookies and metrics into the API
// router. With watch set and a features file configured the engine is
// rebuilt whenever the file changes; watching requires the dev environment.
func (a *app) newService(watch bool) (*service, error) {
	env, fromHost, err := a.environment()
	if err != nil {
		return nil, err
	}
	if watch && (fromHost || env != environment.Development) {
		current := env.String()
		if fromHost {
			current = envFromHost
		}
		return nil, errors.Join(errWatchOutsideDev, fmt.Errorf("current environment is %s", current))
	}

	var engineOpts []feature.EngineOption
	store, err := cookie.NewStoreFromConfig(a.cfg.Cookie)
	switch {
	case errors.Is(err, cookie.ErrNoSecret):
		a.log.Warn("override cookies disabled, COOKIE_SECRETS is not set")
	case err != nil:
		return nil, err
	default:
		engineOpts = append(engineOpts, feature.WithOverrideStorage(store))
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := &service{}
	var source func() *feature.Engine

	collector, err := featuremetrics.New(metrics, featuremetrics.WithRegistry(func() *feature.Registry {
		return source().Registry()
	}))
	if err != nil {
		return nil, err
	}
	engineOpts = append(engineOpts,
		feature.WithEnvironmentResolver(feature.ContextEnvironment(env)),
		feature.WithEvaluationHook(collector.Hook()),
		feature.WithLogger(a.log),
	)

	build := func(reg *feature.Registry) (*feature.Engine, error) {
		return feature.NewEngine(reg, engineOpts...)
	}

	if watch && a.cfg.FeaturesFile != "" {
		opts := []feature.RegistryOption{feature.WithRegistryLogger(a.log)}
		reloader, err := featurewatch.New(a.cfg.FeaturesFile, func(path string) (*feature.Engine, error) {
			reg, err := feature.LoadRegistryFile(path, opts...)
			if err != nil {
				return nil, err
			}
			return build(reg)
		}, featurewatch.WithLogger(a.log.With(logger.Component("watch"))))
		if err != nil {
			return nil, err
		}
		svc.reloader = reloader
		source = reloader.Engine
	} else {
		if watch {
			a.log.Warn("--watch needs a features file, serving the built-in registry")
		}
		reg, err := a.registry()
		if err != nil {
			return nil, err
		}
		engine, err := build(reg)
		if err != nil {
			return nil, err
		}
		source = func() *feature.Engine { return engine }
	}

	apiOpts := []featureapi.Option{
		featureapi.WithLogger(a.log.With(logger.Component("api"))),
		featureapi.WithMetricsHandler(featuremetrics.Handler(metrics)),
	}
	if fromHost {
		apiOpts = append(apiOpts, featureapi.WithHostEnvironment())
	} else {
		apiOpts = append(apiOpts, featureapi.WithEnvironment(env))
	}
	svc.handler = featureapi.NewWithSource(source, apiOpts...).Handler()
	return svc, nil
}
