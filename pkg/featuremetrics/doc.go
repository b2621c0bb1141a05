// Package featuremetrics exports feature evaluation counters to Prometheus.
//
// A Collector plugs into feature.Engine as an evaluation hook and counts
// decisions in flagkit_feature_evaluations_total{feature,enabled,reason}.
// Features missing from the registry share a single label value.
package featuremetrics
