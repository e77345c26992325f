// Package metrics provides Prometheus metrics collection for the gateway,
// plus the real application counters served by the admin metrics endpoint.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Global metrics - used by the application.
	// Using atomic.Pointer for lock-free initialization checks on hot path metrics.
	requestsTotal     atomic.Pointer[prometheus.CounterVec]
	requestDuration   atomic.Pointer[prometheus.HistogramVec]
	authFailuresTotal atomic.Pointer[prometheus.CounterVec]
	rateLimitedTotal  atomic.Pointer[prometheus.Counter]
)

// App-level counters. These back /admin/metrics with real values only —
// nothing here is ever fabricated or simulated.
var (
	appRequests        atomic.Int64
	appErrors          atomic.Int64
	appGameStarts      atomic.Int64
	appGameCompletions atomic.Int64
	appScoreSum        atomic.Int64
	appScoreCount      atomic.Int64
)

// Init initializes all Prometheus metrics and registers them with the provided registry.
// This should be called once at application startup.
func Init(reg prometheus.Registerer) error {
	requestsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botgate",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the gateway",
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestsTotalVec); err != nil {
		return fmt.Errorf("failed to register requestsTotal: %w", err)
	}

	requestDurationVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "botgate",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	if err := reg.Register(requestDurationVec); err != nil {
		return fmt.Errorf("failed to register requestDuration: %w", err)
	}

	authFailuresTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "botgate",
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)
	if err := reg.Register(authFailuresTotalVec); err != nil {
		return fmt.Errorf("failed to register authFailuresTotal: %w", err)
	}

	rateLimitedCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "botgate",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
	)
	if err := reg.Register(rateLimitedCounter); err != nil {
		return fmt.Errorf("failed to register rateLimitedTotal: %w", err)
	}

	requestsTotal.Store(requestsTotalVec)
	requestDuration.Store(requestDurationVec)
	authFailuresTotal.Store(authFailuresTotalVec)
	rateLimitedTotal.Store(&rateLimitedCounter)

	return nil
}

// RecordRequest increments the request counters. The path should be the
// route pattern (e.g., "/link/confirm"), not the raw URL.
func RecordRequest(method, path, statusCode string) {
	if counter := requestsTotal.Load(); counter != nil {
		counter.WithLabelValues(method, path, statusCode).Inc()
	}
	appRequests.Add(1)
	if len(statusCode) > 0 && (statusCode[0] == '4' || statusCode[0] == '5') {
		appErrors.Add(1)
	}
}

// RecordRequestDuration records the latency for a request in seconds.
func RecordRequestDuration(method, path, statusCode string, durationSeconds float64) {
	if histogram := requestDuration.Load(); histogram != nil {
		histogram.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
	}
}

// RecordAuthFailure increments the auth failures counter for the given reason.
// Common reasons: "invalid_token", "server_config", "admin_denied".
func RecordAuthFailure(reason string) {
	if counter := authFailuresTotal.Load(); counter != nil {
		counter.WithLabelValues(reason).Inc()
	}
}

// RecordRateLimited increments the rate-limited counter.
func RecordRateLimited() {
	if counter := rateLimitedTotal.Load(); counter != nil {
		(*counter).Inc()
	}
}

// RecordGameStart counts a game-start event reported by the games backend.
func RecordGameStart() {
	appGameStarts.Add(1)
}

// RecordGameCompletion counts a game-completion event and folds the score
// into the running average.
func RecordGameCompletion(score int64) {
	appGameCompletions.Add(1)
	appScoreSum.Add(score)
	appScoreCount.Add(1)
}

// Snapshot is the real counter set returned by /admin/metrics.
type Snapshot struct {
	Requests        int64   `json:"requests"`
	Errors          int64   `json:"errors"`
	GameStarts      int64   `json:"gameStarts"`
	GameCompletions int64   `json:"gameCompletions"`
	AverageScore    float64 `json:"averageScore"`
}

// Current returns the app counter snapshot.
func Current() Snapshot {
	s := Snapshot{
		Requests:        appRequests.Load(),
		Errors:          appErrors.Load(),
		GameStarts:      appGameStarts.Load(),
		GameCompletions: appGameCompletions.Load(),
	}
	if n := appScoreCount.Load(); n > 0 {
		s.AverageScore = float64(appScoreSum.Load()) / float64(n)
	}
	return s
}

// Handler returns an HTTP handler for Prometheus metrics in text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
