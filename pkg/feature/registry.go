package feature

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/restorelab/flagkit/pkg/logger"
)

// Registry is the immutable set of configured features.
// It keeps declaration order for listing. It is safe for concurrent use
// because nothing mutates it after NewRegistry returns.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// RegistryOption configures registry construction.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	logger *slog.Logger
}

// WithRegistryLogger sets the logger used for configuration warnings.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(c *registryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewRegistry validates flags and builds a registry.
// Empty or duplicate names, nil definitions and unknown environments are
// rejected with ErrInvalidFlag. Rollout percentages outside [0,100] are
// clamped and reported as a warning.
func NewRegistry(flags []Flag, opts ...RegistryOption) (*Registry, error) {
	cfg := &registryConfig{logger: logger.Discard()}
	for _, opt := range opts {
		opt(cfg)
	}

	r := &Registry{
		defs:  make(map[string]Definition, len(flags)),
		order: make([]string, 0, len(flags)),
	}

	for _, flag := range flags {
		if flag.Name == "" {
			return nil, errors.Join(ErrInvalidFlag, errors.New("flag name cannot be empty"))
		}
		if _, exists := r.defs[flag.Name]; exists {
			return nil, errors.Join(ErrInvalidFlag, fmt.Errorf("duplicate flag %q", flag.Name))
		}

		def, err := normalizeDefinition(cfg.logger, flag)
		if err != nil {
			return nil, err
		}

		r.defs[flag.Name] = def
		r.order = append(r.order, flag.Name)
	}

	return r, nil
}

func normalizeDefinition(log *slog.Logger, flag Flag) (Definition, error) {
	switch def := flag.Definition.(type) {
	case Bool, Version:
		return def, nil
	case Advanced:
		adv := def.clone()
		for _, env := range adv.Environments {
			if !env.Valid() {
				return nil, errors.Join(ErrInvalidFlag,
					fmt.Errorf("flag %q: unknown environment %q", flag.Name, env))
			}
		}
		if p := adv.RolloutPercentage; p != nil && (*p < 0 || *p > 100) {
			clamped := min(max(*p, 0), 100)
			log.Warn("feature registry: rollout percentage out of range",
				logger.Feature(flag.Name),
				slog.Int("configured", *p),
				slog.Int("clamped", clamped),
			)
			adv.RolloutPercentage = Percent(clamped)
		}
		return adv, nil
	case nil:
		return nil, errors.Join(ErrInvalidFlag, fmt.Errorf("flag %q has no definition", flag.Name))
	default:
		return nil, errors.Join(ErrInvalidFlag, fmt.Errorf("flag %q: unsupported definition %T", flag.Name, def))
	}
}

// Lookup returns a copy of the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	def, ok := r.defs[name]
	if !ok {
		return nil, false
	}
	return cloneDefinition(def), true
}

// Names returns feature names in declaration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Len returns the number of registered features.
func (r *Registry) Len() int {
	return len(r.order)
}

// Flags returns all flags in declaration order.
func (r *Registry) Flags() []Flag {
	flags := make([]Flag, 0, len(r.order))
	for _, name := range r.order {
		flags = append(flags, Flag{Name: name, Definition: cloneDefinition(r.defs[name])})
	}
	return flags
}
