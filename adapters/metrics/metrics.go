// Package metrics provides Prometheus metrics collection for the
// fusion gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the gateway.
type Collector struct {
	// Inbound request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Authorizer metrics
	AuthFailures *prometheus.CounterVec

	// Upstream fan-out metrics
	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	FallbacksTotal   *prometheus.CounterVec

	// Reconcile metrics
	ReconcileRuns     *prometheus.CounterVec
	ConfigLastApplied prometheus.Gauge
}

// New creates a metrics collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a metrics collector on a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fusion",
				Name:      "requests_total",
				Help:      "Total number of gateway requests processed",
			},
			[]string{"destination", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fusion",
				Name:      "request_duration_seconds",
				Help:      "Gateway request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"destination"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fusion",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fusion",
				Name:      "auth_failures_total",
				Help:      "Total number of bearer token authorization failures",
			},
			[]string{"reason"},
		),

		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fusion",
				Name:      "upstream_duration_seconds",
				Help:      "Upstream call duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fusion",
				Name:      "upstream_errors_total",
				Help:      "Total number of upstream call failures",
			},
			[]string{"source", "kind"},
		),
		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fusion",
				Name:      "fallbacks_total",
				Help:      "Total number of fallback substitutions",
			},
			[]string{"source"},
		),

		ReconcileRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fusion",
				Name:      "reconcile_runs_total",
				Help:      "Total number of configuration reconcile passes",
			},
			[]string{"result"},
		),
		ConfigLastApplied: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fusion",
				Name:      "config_last_applied_timestamp",
				Help:      "Unix timestamp of the last applied configuration",
			},
		),
	}
}
