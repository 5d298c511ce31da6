// Package metrics defines the Prometheus collectors of the search engine and
// exposes them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gcbaptista/go-search-core/model"
)

// Metrics holds all Prometheus collectors of the engine.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	DocsIndexedTotal     *prometheus.CounterVec
	DocsFailedTotal      *prometheus.CounterVec
	JobsTotal            *prometheus.CounterVec
	JobDuration          *prometheus.HistogramVec
	AnalyticsDropped     prometheus.CounterFunc
}

// New creates the collectors and registers them, with the Go runtime and
// process collectors, in a registry of their own.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by index and outcome (hit, zero_result, error).",
			},
			[]string{"index", "result_type"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of matching documents per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 1000},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of search cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of search cache misses.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents indexed by index.",
			},
			[]string{"index"},
		),
		DocsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docs_failed_total",
				Help: "Total documents of accepted batches that could not be stored.",
			},
			[]string{"index"},
		),
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobs_total",
				Help: "Finished background jobs by type and final status.",
			},
			[]string{"type", "status"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "job_duration_seconds",
				Help:    "Background job run time in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"type"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIndexedTotal,
		m.DocsFailedTotal,
		m.JobsTotal,
		m.JobDuration,
	)
	return m
}

// RegisterAnalyticsDropped exposes the number of analytics events dropped
// because the collector buffer was full.
func (m *Metrics) RegisterAnalyticsDropped(dropped func() int64) {
	m.AnalyticsDropped = prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "analytics_events_dropped_total",
			Help: "Search events dropped because the analytics buffer was full.",
		},
		func() float64 { return float64(dropped()) },
	)
	m.registry.MustRegister(m.AnalyticsDropped)
}

// Registry returns the registry the collectors are registered in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus scrape HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSearch records one search. resultType is "hit", "zero_result" or
// "error".
func (m *Metrics) ObserveSearch(index string, took time.Duration, total int, cacheHit bool, err error) {
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}

	resultType := "hit"
	switch {
	case err != nil:
		resultType = "error"
	case total == 0:
		resultType = "zero_result"
	}
	m.SearchQueriesTotal.WithLabelValues(index, resultType).Inc()
	if err == nil {
		m.SearchLatency.WithLabelValues(cacheStatus).Observe(took.Seconds())
		m.SearchResultsCount.Observe(float64(total))
	}
}

// ObserveBatch records the outcome of a document batch.
func (m *Metrics) ObserveBatch(index string, indexed, failed int) {
	m.DocsIndexedTotal.WithLabelValues(index).Add(float64(indexed))
	if failed > 0 {
		m.DocsFailedTotal.WithLabelValues(index).Add(float64(failed))
	}
}

// ObserveJob records a finished background job.
func (m *Metrics) ObserveJob(jobType model.JobType, status model.JobStatus, duration time.Duration) {
	m.JobsTotal.WithLabelValues(string(jobType), string(status)).Inc()
	m.JobDuration.WithLabelValues(string(jobType)).Observe(duration.Seconds())
}

// GinMiddleware records HTTP request count, latency, and in-flight gauge.
// Requests are labelled with the matched route, not the raw path.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
