// Package metrics exposes Prometheus counters for reminder delivery.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reemind"

// Collector holds the service metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	Outcomes      *prometheus.CounterVec
	BatchDuration prometheus.Histogram
	Batches       *prometheus.CounterVec
}

// New creates a Collector with Go and process collectors registered.
func New() *Collector {
	registry := prometheus.NewRegistry()

	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_outcomes_total",
			Help:      "Per-user dispatch outcomes",
		},
		[]string{"outcome"},
	)

	batchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of a full dispatch batch",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	batches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Dispatch batches by result",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		outcomes,
		batchDuration,
		batches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		registry:      registry,
		Outcomes:      outcomes,
		BatchDuration: batchDuration,
		Batches:       batches,
	}
}

// RecordOutcome counts one user's dispatch result. Safe on a nil Collector.
func (c *Collector) RecordOutcome(outcome string) {
	if c == nil {
		return
	}
	c.Outcomes.WithLabelValues(outcome).Inc()
}

// RecordBatch observes a finished batch. result is "ok" or "error".
func (c *Collector) RecordBatch(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.BatchDuration.Observe(d.Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Batches.WithLabelValues(result).Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
