package featurewatch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/restorelab/flagkit/pkg/feature"
	"github.com/restorelab/flagkit/pkg/logger"
)

// ErrBuild indicates the initial engine could not be built.
var ErrBuild = errors.New("featurewatch: initial build failed")

// Builder creates an engine from the registry file at path.
type Builder func(path string) (*feature.Engine, error)

// Option configures a Reloader.
type Option func(*Reloader)

// WithLogger sets the reloader logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reloader) { r.logger = logger.From(l) }
}

// WithDebounce sets how long changes settle before a rebuild. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(r *Reloader) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// Reloader keeps an Engine in sync with a registry file.
// A file that fails to parse leaves the previous engine in place.
type Reloader struct {
	path     string
	build    Builder
	logger   *slog.Logger
	debounce time.Duration

	current atomic.Pointer[feature.Engine]
	reloads atomic.Int64
}

// New builds the first engine from path.
func New(path string, build Builder, opts ...Option) (*Reloader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Join(ErrBuild, err)
	}

	r := &Reloader{
		path:     abs,
		build:    build,
		logger:   logger.Discard(),
		debounce: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}

	engine, err := build(abs)
	if err != nil {
		return nil, errors.Join(ErrBuild, err)
	}
	r.current.Store(engine)
	return r, nil
}

// Engine returns the engine built from the latest valid file.
func (r *Reloader) Engine() *feature.Engine {
	return r.current.Load()
}

// Reloads counts successful rebuilds since New.
func (r *Reloader) Reloads() int64 {
	return r.reloads.Load()
}

// Run watches the file until ctx is done.
// The parent directory is watched so editors that replace the file are seen.
func (r *Reloader) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(r.path)); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "watching feature registry", slog.String("path", r.path))

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != r.path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			trigger = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.WarnContext(ctx, "feature registry watch error", logger.Error(err))

		case <-trigger:
			trigger = nil
			r.reload(ctx)
		}
	}
}

func (r *Reloader) reload(ctx context.Context) {
	start := time.Now()
	engine, err := r.build(r.path)
	if err != nil {
		r.logger.WarnContext(ctx, "feature registry reload failed, keeping previous",
			slog.String("path", r.path),
			logger.Error(err),
		)
		return
	}
	r.current.Store(engine)
	r.reloads.Add(1)
	r.logger.InfoContext(ctx, "feature registry reloaded",
		slog.String("path", r.path),
		slog.Int("features", engine.Registry().Len()),
		logger.Duration(time.Since(start)),
	)
}
