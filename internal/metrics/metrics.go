package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videoflix_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videoflix_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Transcode metrics
var (
	TranscodeRenditionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_transcode_renditions_total",
			Help: "Renditions processed by the transcode job, by outcome",
		},
		[]string{"resolution", "outcome"}, // generated, skipped, failed, timeout
	)

	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videoflix_transcode_duration_seconds",
			Help:    "Encoder run time per rendition in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"resolution"},
	)

	TranscodesInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videoflix_transcodes_in_progress",
			Help: "Number of transcode jobs currently running",
		},
	)
)

// Job queue metrics
var (
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_jobs_submitted_total",
			Help: "Jobs handed to a submitter",
		},
		[]string{"kind", "mode"}, // mode: queue, inline
	)

	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_jobs_processed_total",
			Help: "Jobs executed, by outcome",
		},
		[]string{"kind", "status"}, // success, failed
	)
)

// Auth metrics
var (
	RevocationsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoflix_revocations_purged_total",
			Help: "Expired refresh token revocations removed by the purge job",
		},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)
)
