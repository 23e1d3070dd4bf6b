// Package metrics holds the Prometheus collectors recorded by the pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ilfeat"

type Metrics struct {
	registry *prometheus.Registry

	CacheRequests     *prometheus.CounterVec
	ComputeSeconds    *prometheus.HistogramVec
	EmbeddingAttempts *prometheus.CounterVec
	ExternalToolRuns  *prometheus.CounterVec
	BatchRows         *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Descriptor cache lookups by generator and result (hit, miss, corrupt).",
		}, []string{"generator", "result"}),
		ComputeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "descriptor_compute_seconds",
			Help:      "Time spent computing descriptor vectors on cache misses.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"generator"}),
		EmbeddingAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_attempts_total",
			Help:      "3D embedding attempts by outcome.",
		}, []string{"outcome"}),
		ExternalToolRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_tool_runs_total",
			Help:      "External descriptor tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		BatchRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_rows_total",
			Help:      "Batch rows processed by status tag.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.CacheRequests, m.ComputeSeconds, m.EmbeddingAttempts, m.ExternalToolRuns, m.BatchRows)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) CacheResult(generator, result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(generator, result).Inc()
}

func (m *Metrics) ObserveCompute(generator string, d time.Duration) {
	if m == nil {
		return
	}
	m.ComputeSeconds.WithLabelValues(generator).Observe(d.Seconds())
}

func (m *Metrics) EmbeddingAttempt(outcome string) {
	if m == nil {
		return
	}
	m.EmbeddingAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ExternalToolRun(tool, outcome string) {
	if m == nil {
		return
	}
	m.ExternalToolRuns.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) BatchRow(status string) {
	if m == nil {
		return
	}
	m.BatchRows.WithLabelValues(status).Inc()
}

// WriteTextfile writes all collected metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
