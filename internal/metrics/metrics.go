// Package metrics exposes Prometheus collectors for the listing crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors exist from package init so Observe* calls are always safe;
// Init only decides where they are registered.
var (
	fetchRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "listing_fetch_retries_total",
		Help: "Total number of page fetch retries scheduled after a transport failure.",
	})

	fetchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_fetch_requests_total",
			Help: "Total number of outbound GET requests, labeled by identity profile and outcome.",
		},
		[]string{"profile", "outcome"},
	)

	fetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listing_fetch_duration_seconds",
			Help:    "Histogram of outbound GET latencies, labeled by identity profile.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"profile"},
	)

	resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_resolutions_total",
			Help: "Total number of resource resolutions, labeled by link status.",
		},
		[]string{"status"},
	)

	checkpointCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_checkpoint_commits_total",
			Help: "Total number of checkpoint publish attempts, labeled by result.",
		},
		[]string{"result"},
	)

	rateLimitDelaysSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listing_rate_limit_delays_seconds",
			Help:    "Histogram of politeness limiter wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	once sync.Once
)

// Init registers the collectors with reg (the default registerer when nil).
// It is safe to call this function multiple times.
func Init(reg prometheus.Registerer) {
	once.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			fetchRetriesTotal,
			fetchRequestsTotal,
			fetchDurationSeconds,
			resolutionsTotal,
			checkpointCommitsTotal,
			rateLimitDelaysSeconds,
			httpRequestsTotal,
			httpRequestDurationSeconds,
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRetry counts one scheduled page fetch retry.
func ObserveRetry() {
	fetchRetriesTotal.Inc()
}

// ObserveFetch records one outbound GET.
func ObserveFetch(profile string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if profile == "" {
		profile = "default"
	}
	fetchRequestsTotal.WithLabelValues(profile, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(profile).Observe(duration.Seconds())
}

// ObserveResolution counts a resolution outcome (resolved, unresolved, none).
func ObserveResolution(status string) {
	resolutionsTotal.WithLabelValues(status).Inc()
}

// ObserveCommit counts a checkpoint publish attempt.
func ObserveCommit(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	checkpointCommitsTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records the duration of a limiter wait.
func ObserveRateLimitDelay(duration time.Duration) {
	rateLimitDelaysSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
