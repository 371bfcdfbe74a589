// Package metrics provides Prometheus metrics for the forecast engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace prefixes every metric name. Blank keeps the default.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem sets the second name segment. Blank keeps the default.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets replaces the millisecond buckets shared by every latency
// histogram. The slice is copied.
func WithLatencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.latencyBuckets = append([]float64(nil), buckets...)
		}
	}
}

// WithPrometheusRegistry registers the metrics with registry instead of a
// private one.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
