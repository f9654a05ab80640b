// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carechat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carechat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carechat_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// Conversation metrics
	GatewayInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carechat_gateway_invocations_total",
			Help: "Gateway invocations by outcome",
		},
		[]string{"outcome"}, // answered, fallback, invalid_input, patient_not_found, storage_error
	)

	OrphanedUserMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carechat_orphaned_user_messages_total",
			Help: "User messages stored without an assistant reply because the second write failed",
		},
	)

	InferenceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carechat_inference_requests_total",
			Help: "Inference backend calls by provider and result",
		},
		[]string{"provider", "result"}, // ok, unreachable, timeout, unconfigured, backend_error
	)

	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carechat_inference_duration_seconds",
			Help:    "Inference backend call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"provider"},
	)

	TranscriptCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carechat_transcript_cache_lookups_total",
			Help: "Transcript snapshot cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)
)
