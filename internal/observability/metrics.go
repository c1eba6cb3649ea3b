package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snwstore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "snwstore",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	SecurityEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snwstore",
			Subsystem: "auth",
			Name:      "security_events_total",
			Help:      "Security events recorded by the auth subsystem, by type",
		},
		[]string{"type"},
	)

	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snwstore",
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Requests rejected by a rate limiter, by scope",
		},
		[]string{"scope"},
	)
)
