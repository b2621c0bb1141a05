package feature

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/restorelab/flagkit/pkg/environment"
	"github.com/restorelab/flagkit/pkg/logger"
)

// EnvironmentResolver returns the environment an evaluation runs in.
type EnvironmentResolver func(ctx context.Context) environment.Environment

// StaticEnvironment always resolves to env.
func StaticEnvironment(env environment.Environment) EnvironmentResolver {
	return func(context.Context) environment.Environment { return env }
}

// ContextEnvironment resolves the environment attached to the context and
// falls back to fallback when there is none.
func ContextEnvironment(fallback environment.Environment) EnvironmentResolver {
	return func(ctx context.Context) environment.Environment {
		return environment.FromContextOr(ctx, fallback)
	}
}

// EvaluationHook observes every decision made by an Engine.
type EvaluationHook func(ctx context.Context, d Decision)

// Engine decides whether features are enabled.
// It never mutates the registry and is safe for concurrent use; the only
// state it reads besides the registry is the override storage.
type Engine struct {
	registry  *Registry
	rules     map[string]*rule
	env       EnvironmentResolver
	overrides *Overrides
	normalize func(string) string
	hooks     []EvaluationHook
	logger    *slog.Logger
}

// rule is an advanced definition with its user lists indexed.
type rule struct {
	def       Advanced
	whitelist map[string]struct{}
	blacklist map[string]struct{}
}

// EngineOption configures an Engine.
type EngineOption func(*engineConfig)

type engineConfig struct {
	env       EnvironmentResolver
	storage   Storage
	normalize func(string) string
	hooks     []EvaluationHook
	logger    *slog.Logger
}

// WithEnvironment pins the environment of every evaluation.
func WithEnvironment(env environment.Environment) EngineOption {
	return func(c *engineConfig) { c.env = StaticEnvironment(env) }
}

// WithEnvironmentResolver sets how the environment is resolved per call.
// Nil resolvers are ignored.
func WithEnvironmentResolver(r EnvironmentResolver) EngineOption {
	return func(c *engineConfig) {
		if r != nil {
			c.env = r
		}
	}
}

// WithOverrideStorage enables the developer override layer backed by s.
// Overrides share the engine's environment resolver.
func WithOverrideStorage(s Storage) EngineOption {
	return func(c *engineConfig) { c.storage = s }
}

// WithUserIDNormalizer maps user ids before list membership checks and
// bucketing. List entries are normalized the same way.
func WithUserIDNormalizer(fn func(string) string) EngineOption {
	return func(c *engineConfig) { c.normalize = fn }
}

// WithEvaluationHook registers a hook invoked after every evaluation.
func WithEvaluationHook(h EvaluationHook) EngineOption {
	return func(c *engineConfig) {
		if h != nil {
			c.hooks = append(c.hooks, h)
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(c *engineConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewEngine creates an engine over registry.
// Without WithEnvironment or WithEnvironmentResolver the environment comes
// from the context and defaults to environment.Production.
func NewEngine(registry *Registry, opts ...EngineOption) (*Engine, error) {
	if registry == nil {
		return nil, errors.Join(ErrInvalidRegistry, errors.New("registry cannot be nil"))
	}

	cfg := &engineConfig{
		env:    ContextEnvironment(environment.Production),
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	e := &Engine{
		registry:  registry,
		rules:     make(map[string]*rule),
		env:       cfg.env,
		normalize: cfg.normalize,
		hooks:     cfg.hooks,
		logger:    cfg.logger,
	}
	if e.normalize == nil {
		e.normalize = func(s string) string { return s }
	}
	if cfg.storage != nil {
		e.overrides = NewOverrides(cfg.storage, cfg.env, cfg.logger)
	}

	for name, def := range registry.defs {
		if adv, ok := def.(Advanced); ok {
			e.rules[name] = &rule{
				def:       adv,
				whitelist: e.index(adv.UserWhitelist),
				blacklist: e.index(adv.UserBlacklist),
			}
		}
	}

	return e, nil
}

func (e *Engine) index(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[e.normalize(id)] = struct{}{}
	}
	return set
}

// Registry returns the registry the engine evaluates.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Overrides returns the override layer, or nil when none is configured.
func (e *Engine) Overrides() *Overrides {
	return e.overrides
}

// Environment resolves the environment for ctx.
func (e *Engine) Environment(ctx context.Context) environment.Environment {
	return e.env(ctx)
}

// IsEnabled reports whether a feature is enabled when no user is known.
// Unknown features are disabled.
func (e *Engine) IsEnabled(ctx context.Context, name string) bool {
	return e.evaluate(ctx, name, "", false).Enabled
}

// IsEnabledFor reports whether a feature is enabled for userID.
// Unknown features are disabled.
func (e *Engine) IsEnabledFor(ctx context.Context, name, userID string) bool {
	return e.evaluate(ctx, name, userID, true).Enabled
}

// Evaluate is IsEnabled with the reason for the decision.
func (e *Engine) Evaluate(ctx context.Context, name string) Decision {
	return e.evaluate(ctx, name, "", false)
}

// EvaluateFor is IsEnabledFor with the reason for the decision.
func (e *Engine) EvaluateFor(ctx context.Context, name, userID string) Decision {
	return e.evaluate(ctx, name, userID, true)
}

// EnabledFeatures lists features enabled when no user is known, in
// declaration order.
func (e *Engine) EnabledFeatures(ctx context.Context) []string {
	return e.enabled(ctx, "", false)
}

// EnabledFeaturesFor lists features enabled for userID, in declaration order.
func (e *Engine) EnabledFeaturesFor(ctx context.Context, userID string) []string {
	return e.enabled(ctx, userID, true)
}

// Metadata describes a registered feature. See Registry.Metadata.
func (e *Engine) Metadata(name string) Metadata {
	return e.registry.Metadata(name)
}

// UserRolloutBucket returns the bucket used for userID when evaluating name.
// The configured user id normalizer is applied first.
func (e *Engine) UserRolloutBucket(userID, name string) int {
	return Bucket(e.normalize(userID), name)
}

func (e *Engine) enabled(ctx context.Context, userID string, hasUser bool) []string {
	names := make([]string, 0, len(e.registry.order))
	for _, name := range e.registry.order {
		if e.evaluate(ctx, name, userID, hasUser).Enabled {
			names = append(names, name)
		}
	}
	return names
}

func (e *Engine) evaluate(ctx context.Context, name, userID string, hasUser bool) Decision {
	env := e.env(ctx)
	d := e.decide(ctx, env, name, userID, hasUser)
	d.Feature = name
	d.Environment = env

	attrs := []any{
		logger.Feature(name),
		slog.Bool("enabled", d.Enabled),
		logger.Reason(string(d.Reason)),
	}
	if hasUser {
		attrs = append(attrs, logger.UserID(userID))
	}
	e.logger.DebugContext(ctx, "feature evaluated", attrs...)
	for _, h := range e.hooks {
		h(ctx, d)
	}
	return d
}

func (e *Engine) decide(ctx context.Context, env environment.Environment, name, userID string, hasUser bool) Decision {
	if e.overrides != nil {
		if enabled, ok := e.overrides.Get(ctx, name); ok {
			return Decision{Enabled: enabled, Reason: ReasonOverride}
		}
	}

	def, ok := e.registry.defs[name]
	if !ok {
		return Decision{Enabled: false, Reason: ReasonUnknown}
	}

	switch def := def.(type) {
	case Bool:
		return Decision{Enabled: bool(def), Reason: ReasonStatic}
	case Version:
		return Decision{Enabled: true, Reason: ReasonVersion}
	case Advanced:
		return e.target(env, name, e.rules[name], userID, hasUser)
	}

	// NewRegistry only admits the three definition types.
	return Decision{Enabled: false, Reason: ReasonUnknown}
}

func (e *Engine) target(env environment.Environment, name string, r *rule, userID string, hasUser bool) Decision {
	if !r.def.Enabled {
		return Decision{Enabled: false, Reason: ReasonDisabled}
	}
	if len(r.def.Environments) > 0 && !slices.Contains(r.def.Environments, env) {
		return Decision{Enabled: false, Reason: ReasonEnvironment}
	}
	if !hasUser {
		return Decision{Enabled: true, Reason: ReasonNoUser}
	}

	id := e.normalize(userID)
	if _, denied := r.blacklist[id]; denied {
		return Decision{Enabled: false, Reason: ReasonBlacklisted}
	}
	if _, allowed := r.whitelist[id]; allowed {
		return Decision{Enabled: true, Reason: ReasonWhitelisted}
	}
	if p := r.def.RolloutPercentage; p != nil {
		bucket := Bucket(id, name)
		return Decision{Enabled: bucket < *p, Reason: ReasonRollout, Bucket: &bucket}
	}
	return Decision{Enabled: true, Reason: ReasonDefault}
}
