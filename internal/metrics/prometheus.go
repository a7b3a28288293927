package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus collectors for fetching, discovery and the API.
// A nil *PrometheusMetrics is valid and records nothing.
type PrometheusMetrics struct {
	// HTTP API metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Fetch metrics
	fetchRequestsTotal  *prometheus.CounterVec
	fetchFailureTotal   *prometheus.CounterVec
	fetchRetryTotal     *prometheus.CounterVec
	fetchThrottledTotal *prometheus.CounterVec
	fetchDuration       *prometheus.HistogramVec
	fetchBytesTotal     *prometheus.CounterVec
	fetchCacheHits      prometheus.Counter
	statusCodeTotal     *prometheus.CounterVec

	// Discovery metrics
	pagesScannedTotal   *prometheus.CounterVec
	teamsFound          *prometheus.GaugeVec
	associationDuration *prometheus.HistogramVec
	emptyFeedsTotal     *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates collectors on a private registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &PrometheusMetrics{
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rinkcal_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rinkcal_http_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		fetchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rinkcal_fetch_requests_total",
				Help: "Total outbound page requests per host",
			},
			[]string{"host"},
		),

		fetchFailureTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rinkcal_fetch_failure_total",
				Help: "Total page fetches that resolved to unavailable",
			},
			[]string{"host", "kind"},
		),

		fetchRetryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rinkcal_fetch_retry_total",
				Help: "Total retry attempts after throttle or gateway responses",
			},
			[]string{"host"},
		),

		fetchThrottledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rinkcal_fetch_throttled_total",
				Help: "Total 429/503 responses per host",
			},
			[]string{"host"},
		),

		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rinkcal_fetch_duration_seconds",
				Help:    "Duration of successful page fetches in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		),

		fetchBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rinkcal_fetch_bytes_total",
				Help: "Total bytes fetched per host",
			},
			[]string{"host"},
		),

		fetchCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rinkcal_fetch_cache_hits_total",
				Help: "Page requests answered from the in-process cache",
			},
		),

		statusCodeTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rinkcal_status_code_total",
				Help: "Total responses by status code",
			},
			[]string{"status_code"},
		),

		pagesScannedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rinkcal_pages_scanned_total",
				Help: "Pages dequeued by the crawler per association",
			},
			[]string{"association"},
		),

		teamsFound: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rinkcal_teams_found",
				Help: "Teams emitted by the latest scrape of an association",
			},
			[]string{"association"},
		),

		associationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rinkcal_association_scrape_duration_seconds",
				Help:    "Wall time of one association scrape",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"status"},
		),

		emptyFeedsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rinkcal_empty_feeds_total",
				Help: "Resolved feeds dropped for containing no events",
			},
			[]string{"association"},
		),
	}
}

// RecordHTTPRequest records an API request.
func (pm *PrometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	pm.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordFetchRequest records an outbound attempt.
func (pm *PrometheusMetrics) RecordFetchRequest(host string) {
	if pm == nil {
		return
	}
	pm.fetchRequestsTotal.WithLabelValues(host).Inc()
}

// RecordFetchSuccess records a completed page fetch.
func (pm *PrometheusMetrics) RecordFetchSuccess(host string, statusCode int, bytes int64, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.fetchDuration.WithLabelValues(host).Observe(duration.Seconds())
	pm.fetchBytesTotal.WithLabelValues(host).Add(float64(bytes))
	pm.statusCodeTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchFailure records a fetch that gave up.
func (pm *PrometheusMetrics) RecordFetchFailure(host, kind string, statusCode int) {
	if pm == nil {
		return
	}
	pm.fetchFailureTotal.WithLabelValues(host, kind).Inc()
	if statusCode > 0 {
		pm.statusCodeTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	}
}

// RecordFetchRetry records a retry attempt.
func (pm *PrometheusMetrics) RecordFetchRetry(host string) {
	if pm == nil {
		return
	}
	pm.fetchRetryTotal.WithLabelValues(host).Inc()
}

// RecordThrottle records a 429/503 from a host.
func (pm *PrometheusMetrics) RecordThrottle(host string) {
	if pm == nil {
		return
	}
	pm.fetchThrottledTotal.WithLabelValues(host).Inc()
}

// RecordCacheHit records a page served from the fetch cache.
func (pm *PrometheusMetrics) RecordCacheHit() {
	if pm == nil {
		return
	}
	pm.fetchCacheHits.Inc()
}

// RecordPageScanned records one crawler dequeue.
func (pm *PrometheusMetrics) RecordPageScanned(association string) {
	if pm == nil {
		return
	}
	pm.pagesScannedTotal.WithLabelValues(association).Inc()
}

// RecordEmptyFeed records a team dropped by the empty-calendar filter.
func (pm *PrometheusMetrics) RecordEmptyFeed(association string) {
	if pm == nil {
		return
	}
	pm.emptyFeedsTotal.WithLabelValues(association).Inc()
}

// RecordAssociation records the outcome of one association scrape.
func (pm *PrometheusMetrics) RecordAssociation(association, status string, teams int, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.teamsFound.WithLabelValues(association).Set(float64(teams))
	pm.associationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// GetRegistry returns the Prometheus registry.
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	if pm == nil {
		return nil
	}
	return pm.registry
}
