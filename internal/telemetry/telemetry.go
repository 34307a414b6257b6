// Package telemetry records Prometheus metrics about metric executions.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalnine/netscore/internal/result"
)

const namespace = "netscore"

// Collector owns a private registry so a run can be exported on its own.
type Collector struct {
	registry *prometheus.Registry

	executions *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	tasks      *prometheus.CounterVec
	netScore   prometheus.Histogram
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metric_executions_total",
			Help:      "Metric executions by metric and outcome.",
		}, []string{"metric", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "metric_duration_seconds",
			Help:      "Time spent evaluating a metric for one task.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"metric"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Tasks scored by category.",
		}, []string{"category"}),
		netScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "net_score",
			Help:      "Distribution of task net scores.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
	}
	c.registry.MustRegister(c.executions, c.latency, c.tasks, c.netScore)
	return c
}

// Registry exposes the underlying registry, mainly for tests and HTTP export.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func status(e *result.Execution) string {
	if e.Failed() {
		return string(e.Failure)
	}
	return "ok"
}

// Observe records one metric execution.
func (c *Collector) Observe(e result.Execution) {
	c.executions.WithLabelValues(e.Metric, status(&e)).Inc()
	c.latency.WithLabelValues(e.Metric).Observe(e.Latency.Seconds())
}

// TaskScored records one aggregated task.
func (c *Collector) TaskScored(s result.Score) {
	category := string(s.Category)
	if s.Failure == result.FailureMalformed {
		category = "malformed"
	}
	c.tasks.WithLabelValues(category).Inc()
	c.netScore.Observe(s.NetScore)
}

// WriteTextfile writes the current values in the node_exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
