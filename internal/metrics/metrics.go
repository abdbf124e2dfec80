// Package metrics records worker activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for finalized tasks.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics is the set of observations the worker makes.
type Metrics interface {
	TaskPulled(namespace, queue string)
	TaskFinalized(namespace, queue, taskName string, failed bool, d time.Duration)
	ConnectorError(namespace, queue, op string)
}

// Noop discards every observation.
type Noop struct{}

func (Noop) TaskPulled(string, string)                                 {}
func (Noop) TaskFinalized(string, string, string, bool, time.Duration) {}
func (Noop) ConnectorError(string, string, string)                     {}

// PromMetrics implements Metrics with Prometheus collectors.
type PromMetrics struct {
	pulled          *prometheus.CounterVec
	finalized       *prometheus.CounterVec
	connectorErrors *prometheus.CounterVec
	duration        *prometheus.HistogramVec
}

// NewPromMetrics creates the collectors and registers them with reg.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	m := &PromMetrics{
		pulled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskcore_tasks_pulled_total",
			Help: "Number of tasks pulled from a queue",
		}, []string{"namespace", "queue"}),
		finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskcore_tasks_finalized_total",
			Help: "Number of finalized tasks by outcome",
		}, []string{"namespace", "queue", "task_name", "outcome"}),
		connectorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskcore_connector_errors_total",
			Help: "Number of failed connector operations",
		}, []string{"namespace", "queue", "op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskcore_task_execution_seconds",
			Help:    "Time between start and finalization of a task",
			Buckets: prometheus.DefBuckets,
		}, []string{"namespace", "queue", "task_name"}),
	}
	reg.MustRegister(m.pulled, m.finalized, m.connectorErrors, m.duration)
	return m
}

func (m *PromMetrics) TaskPulled(namespace, queue string) {
	m.pulled.WithLabelValues(namespace, queue).Inc()
}

func (m *PromMetrics) TaskFinalized(namespace, queue, taskName string, failed bool, d time.Duration) {
	outcome := OutcomeSuccess
	if failed {
		outcome = OutcomeFailure
	}
	m.finalized.WithLabelValues(namespace, queue, taskName, outcome).Inc()
	m.duration.WithLabelValues(namespace, queue, taskName).Observe(d.Seconds())
}

func (m *PromMetrics) ConnectorError(namespace, queue, op string) {
	m.connectorErrors.WithLabelValues(namespace, queue, op).Inc()
}
