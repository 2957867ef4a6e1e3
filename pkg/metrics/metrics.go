// Package metrics defines the Prometheus metric collectors used by the
// indexer and searcher and exposes an HTTP handler for scraping.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics records nothing,
// which keeps library code and tests free of registry plumbing.
type Metrics struct {
	HTTPRequestsTotal        *prometheus.CounterVec
	HTTPRequestDuration      *prometheus.HistogramVec
	SearchQueriesTotal       *prometheus.CounterVec
	SearchLatency            *prometheus.HistogramVec
	SearchResultsCount       prometheus.Histogram
	SpellingCorrectionsTotal prometheus.Counter
	CacheHitsTotal           prometheus.Counter
	CacheMissesTotal         prometheus.Counter
	DocsIndexedTotal         prometheus.Counter
	IndexFlushesTotal        *prometheus.CounterVec
	IndexBuildDuration       prometheus.Histogram
	IndexSwapsTotal          prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
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
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by query kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		SpellingCorrectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spelling_corrections_total",
				Help: "Query tokens replaced by a spelling correction.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docs_indexed_total",
				Help: "Total documents indexed.",
			},
		),
		IndexFlushesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_flushes_total",
				Help: "Temporary segments written, by logical index.",
			},
			[]string{"index"},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_build_duration_seconds",
				Help:    "Time spent finishing an index build (final flush and merge).",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
		IndexSwapsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_swaps_total",
				Help: "Index generations swapped in by the searcher.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.SpellingCorrectionsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DocsIndexedTotal,
		m.IndexFlushesTotal,
		m.IndexBuildDuration,
		m.IndexSwapsTotal,
	)

	return m
}

// Handler serves the metrics gathered by g in the Prometheus exposition
// format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{ErrorLog: slogAdapter{}})
}

type slogAdapter struct{}

func (slogAdapter) Println(v ...any) {
	slog.Error("metrics scrape failed", "error", fmt.Sprint(v...))
}

func (m *Metrics) DocIndexed() {
	if m != nil {
		m.DocsIndexedTotal.Inc()
	}
}

func (m *Metrics) Flushed(index string) {
	if m != nil {
		m.IndexFlushesTotal.WithLabelValues(index).Inc()
	}
}

func (m *Metrics) BuildFinished(d time.Duration) {
	if m != nil {
		m.IndexBuildDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) IndexSwapped() {
	if m != nil {
		m.IndexSwapsTotal.Inc()
	}
}

func (m *Metrics) Query(kind, outcome string, results int) {
	if m != nil {
		m.SearchQueriesTotal.WithLabelValues(kind, outcome).Inc()
		m.SearchResultsCount.Observe(float64(results))
	}
}

func (m *Metrics) Corrected(n int) {
	if m != nil {
		m.SpellingCorrectionsTotal.Add(float64(n))
	}
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.Inc()
	} else {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) ObserveSearch(cacheStatus string, d time.Duration) {
	if m != nil {
		m.SearchLatency.WithLabelValues(cacheStatus).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m != nil {
		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
	}
}
