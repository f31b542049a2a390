package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job metrics
var (
	JobsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcoding_jobs_submitted_total",
			Help: "Total number of accepted job submissions",
		},
	)

	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcoding_jobs_finished_total",
			Help: "Total number of jobs that reached a terminal state",
		},
		[]string{"state"}, // completed, failed, cancelled
	)

	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcoding_jobs_active",
			Help: "Number of transcode sessions currently running in this process",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transcoding_job_duration_seconds",
			Help:    "Wall time from claim to terminal state",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"state"},
	)
)

// Fetch / filesystem metrics
var (
	FetchBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcoding_fetch_bytes_total",
			Help: "Bytes streamed from source URLs into staging files",
		},
	)

	FetchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcoding_fetch_errors_total",
			Help: "Number of failed source downloads",
		},
	)

	CleanupWarningsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcoding_cleanup_warnings_total",
			Help: "Number of staging file deletions that failed",
		},
	)
)
