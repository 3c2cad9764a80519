// Package metrics exposes Prometheus collectors for the review crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlRunsTotal             *prometheus.CounterVec
	crawlDurationSeconds       prometheus.Histogram
	reviewsPersistedTotal      *prometheus.CounterVec
	windowDaysUsed             prometheus.Histogram
	navigationFailuresTotal    prometheus.Counter
	schedulerStoresTotal       *prometheus.CounterVec
	activeRuns                 prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviews_crawl_runs_total",
				Help: "Total number of crawl runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reviews_crawl_duration_seconds",
				Help:    "Histogram of crawl run durations.",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
			},
		)

		reviewsPersistedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviews_persisted_total",
				Help: "Total number of reviews written, labeled by action (inserted, updated).",
			},
			[]string{"action"},
		)

		windowDaysUsed = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reviews_window_days_used",
				Help:    "Day window that satisfied selection; 0 is unbounded.",
				Buckets: []float64{0, 7, 30, 90, 180, 365},
			},
		)

		navigationFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "reviews_navigation_failures_total",
				Help: "Total number of runs where neither the embedded frame nor the mobile page was reachable.",
			},
		)

		schedulerStoresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviews_scheduler_stores_total",
				Help: "Total number of stores processed by scheduler ticks, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		activeRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "reviews_active_runs",
				Help: "Number of crawl runs holding a browser session.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records a finished crawl run.
func ObserveRun(outcome string, duration time.Duration) {
	crawlRunsTotal.WithLabelValues(outcome).Inc()
	crawlDurationSeconds.Observe(duration.Seconds())
}

// ObservePersisted counts reviews inserted or updated by a run.
func ObservePersisted(inserted, updated int) {
	if inserted > 0 {
		reviewsPersistedTotal.WithLabelValues("inserted").Add(float64(inserted))
	}
	if updated > 0 {
		reviewsPersistedTotal.WithLabelValues("updated").Add(float64(updated))
	}
}

// ObserveWindow records the day window a run settled on.
func ObserveWindow(days int) {
	windowDaysUsed.Observe(float64(days))
}

// ObserveNavigationFailure counts runs that could not reach the review list.
func ObserveNavigationFailure() {
	navigationFailuresTotal.Inc()
}

// ObserveSchedulerStore counts one store handled by a scheduler tick.
func ObserveSchedulerStore(outcome string) {
	schedulerStoresTotal.WithLabelValues(outcome).Inc()
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	activeRuns.Inc()
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	activeRuns.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
