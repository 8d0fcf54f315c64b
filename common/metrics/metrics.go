package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Execution metrics for the workflow engine. Registered on the default
// registry and exposed through GET /metrics.
var (
	ExecutionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "workflow_executions_started_total",
		Help: "Number of workflow executions submitted",
	})

	ExecutionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_executions_finished_total",
		Help: "Number of workflow executions that reached a terminal state",
	}, []string{"status"})

	ActiveExecutions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "workflow_executions_active",
		Help: "Number of executions currently running",
	})

	NodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workflow_node_execution_seconds",
		Help:    "Wall-clock node execution time by node type",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"node_type", "status"})
)
