// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
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

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	PipelineTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_transitions_total",
			Help: "Committed application status transitions",
		},
		[]string{"from", "to"},
	)

	OperationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_operation_rejections_total",
			Help: "Pipeline operations rejected, by error code",
		},
		[]string{"operation", "code"},
	)

	OutboxDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_deliveries_total",
			Help: "Outbox deliveries per sink and result",
		},
		[]string{"sink", "result"},
	)

	OutboxBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbox_batch_size",
			Help:    "Number of events claimed per relay poll",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)

	OutboxDeadLetters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_dead_letters_total",
			Help: "Events that exhausted their delivery attempts",
		},
		[]string{"event_type"},
	)
)
