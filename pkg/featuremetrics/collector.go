package featuremetrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/restorelab/flagkit/pkg/feature"
)

const namespace = "flagkit"

// UnknownFeatureLabel replaces the feature label for names missing from the
// registry so arbitrary lookups cannot grow label cardinality.
const UnknownFeatureLabel = "_unknown"

// ErrRegister indicates the collector metrics could not be registered.
var ErrRegister = errors.New("featuremetrics: failed to register metrics")

// Collector counts feature evaluations.
type Collector struct {
	evaluations *prometheus.CounterVec
	overrides   *prometheus.CounterVec
}

// Option configures a Collector.
type Option func(*options)

type options struct {
	registry func() *feature.Registry
}

// WithRegistry registers a gauge reporting the size of the registry returned
// by source at scrape time.
func WithRegistry(source func() *feature.Registry) Option {
	return func(o *options) { o.registry = source }
}

// New creates a Collector and registers its metrics on reg.
func New(reg prometheus.Registerer, opts ...Option) (*Collector, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	c := &Collector{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_evaluations_total",
			Help:      "Feature evaluations by feature, outcome and deciding reason.",
		}, []string{"feature", "enabled", "reason"}),
		overrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_override_decisions_total",
			Help:      "Evaluations decided by a developer override, by environment.",
		}, []string{"environment"}),
	}

	collectors := []prometheus.Collector{c.evaluations, c.overrides}
	if o.registry != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "features_configured",
			Help:      "Number of features in the loaded registry.",
		}, func() float64 { return float64(o.registry().Len()) }))
	}

	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return nil, errors.Join(ErrRegister, err)
		}
	}
	return c, nil
}

// Observe records one decision.
func (c *Collector) Observe(_ context.Context, d feature.Decision) {
	name := d.Feature
	if d.Reason == feature.ReasonUnknown {
		name = UnknownFeatureLabel
	}
	c.evaluations.WithLabelValues(name, strconv.FormatBool(d.Enabled), string(d.Reason)).Inc()
	if d.Reason == feature.ReasonOverride {
		c.overrides.WithLabelValues(d.Environment.String()).Inc()
	}
}

// Hook returns Observe as an engine hook.
//
//	engine, err := feature.NewEngine(reg, feature.WithEvaluationHook(collector.Hook()))
func (c *Collector) Hook() feature.EvaluationHook {
	return c.Observe
}

// Handler exposes the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
