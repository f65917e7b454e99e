// Package metrics exposes Prometheus collectors for the winners service.
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
	racePagesTotal             *prometheus.CounterVec
	fetchTotal                 *prometheus.CounterVec
	winnersMatchedTotal        prometheus.Counter
	categoriesSkippedTotal     prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		racePagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "winners_race_pages_total",
				Help: "Total race detail pages visited, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "winners_fetch_total",
				Help: "Total page fetches, labeled by transport (browser, direct, proxy) and result.",
			},
			[]string{"transport", "result"},
		)

		winnersMatchedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "winners_matched_total",
				Help: "Total winner rows matched against the target date.",
			},
		)

		categoriesSkippedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "winners_categories_skipped_total",
				Help: "Total categories skipped because of an unrecoverable category-level error.",
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRacePage increments the race page counter for the given outcome
// (matched, no-match, skipped-error).
func ObserveRacePage(outcome string) {
	racePagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch increments the fetch counter for a transport/result pair.
func ObserveFetch(transport, result string) {
	fetchTotal.WithLabelValues(transport, result).Inc()
}

// ObserveMatch increments the matched winners counter.
func ObserveMatch() {
	winnersMatchedTotal.Inc()
}

// ObserveCategorySkipped increments the skipped categories counter.
func ObserveCategorySkipped() {
	categoriesSkippedTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
