// Package metrics exposes Prometheus collectors for the inspection crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch attempt outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeTransient = "transient"
	OutcomeStatus    = "status"
	OutcomeFailed    = "failed"
)

// Provider outcomes.
const (
	ProviderRecorded  = "recorded"
	ProviderUnmatched = "unmatched"
	ProviderSkipped   = "skipped"
)

var (
	fetchAttemptsTotal            *prometheus.CounterVec
	fetchBytesTotal               *prometheus.CounterVec
	providersTotal                *prometheus.CounterVec
	extractionFieldsMissingTotal  *prometheus.CounterVec
	directoryPagesTotal           *prometheus.CounterVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	crawlRunsTotal                *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_attempts_total",
				Help: "Total number of fetch attempts, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		providersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_providers_total",
				Help: "Total number of providers visited, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		extractionFieldsMissingTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_extraction_fields_missing_total",
				Help: "Total number of extracted fields left null, labeled by field.",
			},
			[]string{"field"},
		)

		directoryPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_directory_pages_total",
				Help: "Total number of directory pages requested, labeled by status.",
			},
			[]string{"status"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_runs_total",
				Help: "Total number of crawl runs, labeled by status.",
			},
			[]string{"status"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch attempt and, on success, the bytes read.
func ObserveFetch(rawURL, outcome string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchAttemptsTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveProvider counts a provider by how it was handled.
func ObserveProvider(outcome string) {
	Init()
	providersTotal.WithLabelValues(outcome).Inc()
}

// ObserveMissingField counts an extracted field that stayed null.
func ObserveMissingField(field string) {
	Init()
	extractionFieldsMissingTotal.WithLabelValues(field).Inc()
}

// ObserveDirectoryPage counts a directory page request.
func ObserveDirectoryPage(status string) {
	Init()
	directoryPagesTotal.WithLabelValues(status).Inc()
}

// ObserveRun counts a finished crawl run.
func ObserveRun(status string) {
	Init()
	crawlRunsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
