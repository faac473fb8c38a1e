// Package metrics provides Prometheus metrics for toggle activations.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Makepad-fr/comuta/internal/toggle"
)

// ActivationMetrics counts activations by outcome and tracks requests in flight.
// It satisfies toggle.Recorder.
type ActivationMetrics struct {
	Activations *prometheus.CounterVec
	InFlightNow prometheus.Gauge
	Duration    prometheus.Histogram
	registry    *prometheus.Registry
}

// NewActivationMetrics creates the metrics and registers them on registry.
func NewActivationMetrics(registry *prometheus.Registry) (*ActivationMetrics, error) {
	m := &ActivationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register activation metrics: %w", err)
	}
	return m, nil
}

func (m *ActivationMetrics) initMetrics() {
	m.Activations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "comuta_activations_total",
		Help: "Toggle activations by outcome",
	}, []string{"outcome"})

	// every outcome is exported from the start, even at zero
	for _, o := range toggle.Outcomes() {
		m.Activations.WithLabelValues(o.Label())
	}

	m.InFlightNow = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comuta_activations_in_flight",
		Help: "Toggle requests currently awaiting a response",
	})

	m.Duration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "comuta_activation_duration_seconds",
		Help:    "Time from sending POST /toggle to its response or failure",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
}

// Describe implements prometheus.Collector.
func (m *ActivationMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Activations.Describe(ch)
	m.InFlightNow.Describe(ch)
	m.Duration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *ActivationMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Activations.Collect(ch)
	m.InFlightNow.Collect(ch)
	m.Duration.Collect(ch)
}

// Record counts res under its outcome. Skipped activations sent nothing and
// are left out of the duration histogram.
func (m *ActivationMetrics) Record(res toggle.Result) {
	m.Activations.WithLabelValues(res.Outcome.Label()).Inc()
	if res.Outcome != toggle.Skipped {
		m.Duration.Observe(res.Duration.Seconds())
	}
}

// InFlight moves the in-flight gauge by delta.
func (m *ActivationMetrics) InFlight(delta int) {
	m.InFlightNow.Add(float64(delta))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *ActivationMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
