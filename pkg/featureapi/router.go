package featureapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/restorelab/flagkit/pkg/cookie"
	"github.com/restorelab/flagkit/pkg/environment"
	"github.com/restorelab/flagkit/pkg/feature"
	"github.com/restorelab/flagkit/pkg/logger"
	"github.com/restorelab/flagkit/pkg/requestid"
)

// Option configures the API router.
type Option func(*API)

// WithLogger sets the API logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = logger.From(l) }
}

// WithEnvironment pins every request to env. The default is production.
func WithEnvironment(env environment.Environment) Option {
	return func(a *API) { a.envMiddleware = environment.Middleware(env) }
}

// WithHostEnvironment derives each request's environment from its Host
// header. Clients control that header, so only use it when every route to
// the server rewrites Host.
func WithHostEnvironment() Option {
	return func(a *API) { a.envMiddleware = environment.HostMiddleware() }
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *API) { a.metrics = h }
}

// API serves feature evaluation and override endpoints for an Engine.
type API struct {
	engine        func() *feature.Engine
	logger        *slog.Logger
	envMiddleware func(http.Handler) http.Handler
	metrics       http.Handler
}

// New creates an API over engine.
func New(engine *feature.Engine, opts ...Option) *API {
	return NewWithSource(func() *feature.Engine { return engine }, opts...)
}

// NewWithSource creates an API that asks source for the engine on every
// request, so the engine can be swapped while serving.
func NewWithSource(source func() *feature.Engine, opts ...Option) *API {
	a := &API{
		engine:        source,
		logger:        logger.Discard(),
		envMiddleware: environment.Middleware(environment.Production),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the routed API.
//
//	GET    /health
//	GET    /features?user=
//	GET    /features/{name}
//	GET    /features/{name}/evaluate?user=
//	GET    /features/{name}/bucket?user=
//	GET    /overrides
//	PUT    /overrides/{name}
//	DELETE /overrides
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		requestid.Middleware(),
		middleware.Recoverer,
		a.envMiddleware,
		cookie.Middleware,
	)

	r.Get("/health", a.health)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}

	r.Route("/features", func(r chi.Router) {
		r.Get("/", a.listFeatures)
		r.Get("/{name}", a.metadata)
		r.Get("/{name}/evaluate", a.evaluate)
		r.Get("/{name}/bucket", a.bucket)
	})

	r.Route("/overrides", func(r chi.Router) {
		r.Get("/", a.listOverrides)
		r.Put("/{name}", a.setOverride)
		r.Delete("/", a.clearOverrides)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}

type healthResponse struct {
	Status      string                  `json:"status"`
	Environment environment.Environment `json:"environment"`
	Features    int                     `json:"features"`
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	engine := a.engine()
	writeData(w, healthResponse{
		Status:      "ok",
		Environment: engine.Environment(r.Context()),
		Features:    engine.Registry().Len(),
	})
}

func (a *API) listFeatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if user, ok := userParam(r); ok {
		writeData(w, a.engine().EnabledFeaturesFor(ctx, user))
		return
	}
	writeData(w, a.engine().EnabledFeatures(ctx))
}

func (a *API) metadata(w http.ResponseWriter, r *http.Request) {
	writeData(w, a.engine().Metadata(chi.URLParam(r, "name")))
}

func (a *API) evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	if user, ok := userParam(r); ok {
		writeData(w, a.engine().EvaluateFor(ctx, name, user))
		return
	}
	writeData(w, a.engine().Evaluate(ctx, name))
}

type bucketResponse struct {
	Feature string `json:"feature"`
	User    string `json:"user"`
	Bucket  int    `json:"bucket"`
}

func (a *API) bucket(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	user, ok := userParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeMissingUser, "query parameter user is required")
		return
	}
	writeData(w, bucketResponse{Feature: name, User: user, Bucket: a.engine().UserRolloutBucket(user, name)})
}

func (a *API) listOverrides(w http.ResponseWriter, r *http.Request) {
	overrides := a.engine().Overrides()
	if overrides == nil {
		writeData(w, map[string]bool{})
		return
	}
	writeData(w, overrides.All(r.Context()))
}

type overrideRequest struct {
	Enabled *bool `json:"enabled"`
}

func (a *API) setOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overrides, ok := a.writableOverrides(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	if a.engine().Metadata(name).Kind == feature.KindUnknown {
		writeError(w, http.StatusNotFound, CodeUnknownFeature, "feature "+name+" is not registered")
		return
	}

	var req overrideRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, CodeInvalidBody, `body must be {"enabled": true|false}`)
		return
	}

	if err := overrides.Set(ctx, name, *req.Enabled); err != nil {
		a.logger.ErrorContext(ctx, "override write failed", logger.Feature(name), logger.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "override could not be stored")
		return
	}
	writeData(w, overrides.All(ctx))
}

func (a *API) clearOverrides(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overrides, ok := a.writableOverrides(w, r)
	if !ok {
		return
	}
	if err := overrides.Clear(ctx); err != nil {
		a.logger.ErrorContext(ctx, "override clear failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "overrides could not be cleared")
		return
	}
	writeData(w, map[string]bool{})
}

// writableOverrides writes the error response itself when overrides cannot change.
func (a *API) writableOverrides(w http.ResponseWriter, r *http.Request) (*feature.Overrides, bool) {
	overrides := a.engine().Overrides()
	if overrides == nil {
		writeError(w, http.StatusNotImplemented, CodeOverridesMissing, "override storage is not configured")
		return nil, false
	}
	if !overrides.Active(r.Context()) {
		a.logger.WarnContext(r.Context(), "feature override request rejected",
			slog.String("method", r.Method),
			logger.Feature(chi.URLParam(r, "name")),
			logger.Error(feature.ErrOverridesDisabled),
		)
		writeError(w, http.StatusForbidden, CodeOverridesDisabled, feature.ErrOverridesDisabled.Error())
		return nil, false
	}
	return overrides, true
}

func userParam(r *http.Request) (string, bool) {
	q := r.URL.Query()
	if !q.Has("user") {
		return "", false
	}
	return q.Get("user"), true
}
