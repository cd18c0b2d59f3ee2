// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SinkDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sink_deliveries_total",
			Help: "Total number of lead deliveries per sink and result",
		},
		[]string{"sink", "result"},
	)

	SinkDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_sink_delivery_duration_seconds",
			Help:    "Duration of a single sink delivery in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"sink"},
	)

	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_dispatch_total",
			Help: "Total number of dispatched leads by overall result",
		},
		[]string{"overall"},
	)

	LeadsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_validation_rejected_total",
			Help: "Total number of submissions rejected by the lead validator",
		},
		[]string{"entrypoint"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)

// Result labels for SinkDeliveries.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)
