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

	// AlertDispatches counts dispatch attempts by outcome:
	// success, partial, probe, cached, rejected or failed.
	AlertDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_dispatches_total",
			Help: "Total number of crisis alert dispatches by outcome",
		},
		[]string{"outcome"},
	)

	AlertSMSMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_sms_messages_total",
			Help: "Total number of SMS messages attempted by delivery status",
		},
		[]string{"status"},
	)

	AlertDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alert_dispatch_duration_seconds",
			Help:    "Duration of crisis alert dispatches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// AlertProviderConfigured is 1 when the channel's provider passed its last verification.
	AlertProviderConfigured = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "alert_provider_configured",
			Help: "Whether the email or sms provider is configured and verified",
		},
		[]string{"channel"},
	)
)

// BoolGauge converts a flag into a gauge value.
func BoolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
