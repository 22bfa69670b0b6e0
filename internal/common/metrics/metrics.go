// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConsentDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_deliveries_total",
			Help: "Consent emails handled by the delivery endpoint, by outcome",
		},
		[]string{"outcome"},
	)

	ConsentDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consent_delivery_duration_seconds",
			Help:    "Time spent composing and sending one consent email",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		},
		[]string{"outcome"},
	)

	ConsentAttachments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_attachments_total",
			Help: "Attachments included in sent consent emails, by slot",
		},
		[]string{"slot"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_http_requests_total",
			Help: "HTTP requests served, by route pattern, method and status",
		},
		[]string{"route", "method", "status"},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consent_ratelimit_rejections_total",
			Help: "Requests rejected by the submission rate limiter",
		},
	)

	RateLimitErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "consent_ratelimit_errors_total",
			Help: "Rate limiter store failures (request allowed through)",
		},
	)

	SubmissionAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_submission_attempts_total",
			Help: "Delivery attempts made by the submission client, by result code",
		},
		[]string{"result"},
	)

	IPLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consent_ip_lookups_total",
			Help: "Client IP resolutions, by the source that answered",
		},
		[]string{"source"},
	)
)
