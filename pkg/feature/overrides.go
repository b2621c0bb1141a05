package feature

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/restorelab/flagkit/pkg/environment"
	"github.com/restorelab/flagkit/pkg/logger"
)

// OverridesKey is the storage key holding the serialized override map.
const OverridesKey = "feature_flag_overrides"

// Overrides is the developer override layer.
//
// Every operation is gated on the resolved environment being
// environment.Development. Outside development Set and Clear do nothing and
// log a warning, All returns an empty map and Get reports no override.
// Unreadable or malformed stored data is treated as "no overrides".
type Overrides struct {
	storage Storage
	env     EnvironmentResolver
	logger  *slog.Logger

	// serializes read-modify-write cycles within this process
	mu sync.Mutex
}

// NewOverrides creates an override layer over storage.
// A nil resolver resolves every context to environment.Production.
func NewOverrides(storage Storage, env EnvironmentResolver, log *slog.Logger) *Overrides {
	if env == nil {
		env = StaticEnvironment(environment.Production)
	}
	return &Overrides{storage: storage, env: env, logger: logger.From(log)}
}

// Active reports whether overrides are honoured for ctx.
func (o *Overrides) Active(ctx context.Context) bool {
	return o.env(ctx) == environment.Development
}

// Set records an override for a feature. The last write wins.
func (o *Overrides) Set(ctx context.Context, name string, enabled bool) error {
	if !o.Active(ctx) {
		o.logger.WarnContext(ctx, "feature override ignored",
			logger.Feature(name),
			logger.Error(ErrOverridesDisabled),
		)
		return nil
	}
	if name == "" {
		return errors.Join(ErrInvalidFlag, errors.New("flag name cannot be empty"))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	current := o.load(ctx)
	current[name] = enabled
	if err := o.save(ctx, current); err != nil {
		return err
	}

	o.logger.DebugContext(ctx, "feature override set",
		logger.Feature(name),
		slog.Bool("enabled", enabled),
	)
	return nil
}

// Get returns the override for name, if one is active.
func (o *Overrides) Get(ctx context.Context, name string) (enabled bool, ok bool) {
	if !o.Active(ctx) {
		return false, false
	}
	enabled, ok = o.load(ctx)[name]
	return enabled, ok
}

// All returns a snapshot of every override. The map is never nil.
func (o *Overrides) All(ctx context.Context) map[string]bool {
	if !o.Active(ctx) {
		return map[string]bool{}
	}
	return o.load(ctx)
}

// Clear removes every override.
func (o *Overrides) Clear(ctx context.Context) error {
	if !o.Active(ctx) {
		o.logger.WarnContext(ctx, "feature override clear ignored",
			logger.Error(ErrOverridesDisabled),
		)
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.storage.Delete(ctx, OverridesKey); err != nil {
		return errors.Join(ErrOperationFailed, err)
	}
	return nil
}

func (o *Overrides) load(ctx context.Context) map[string]bool {
	data, err := o.storage.Get(ctx, OverridesKey)
	if err != nil {
		o.logger.WarnContext(ctx, "feature overrides unreadable, ignoring", logger.Error(err))
		return map[string]bool{}
	}
	if len(data) == 0 {
		return map[string]bool{}
	}

	var stored map[string]bool
	if err := json.Unmarshal(data, &stored); err != nil {
		o.logger.WarnContext(ctx, "feature overrides malformed, ignoring", logger.Error(err))
		return map[string]bool{}
	}
	if stored == nil {
		return map[string]bool{}
	}
	return stored
}

func (o *Overrides) save(ctx context.Context, values map[string]bool) error {
	data, err := json.Marshal(values)
	if err != nil {
		return errors.Join(ErrOperationFailed, err)
	}
	if err := o.storage.Set(ctx, OverridesKey, data); err != nil {
		return errors.Join(ErrOperationFailed, err)
	}
	return nil
}
