// Package metrics provides Prometheus metrics for the price engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceRequestsTotal is a counter of fetch attempts per source.
	SourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_requests_total",
			Help: "Total number of fetch attempts against upstream price sources",
		},
		[]string{"source"},
	)

	// SourceFailuresTotal is a counter of failed fetches per source.
	SourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_failures_total",
			Help: "Total number of failed fetches against upstream price sources",
		},
		[]string{"source"},
	)

	// SourceFetchDuration is a histogram of upstream fetch latencies.
	SourceFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Latency of upstream price fetches",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	// PriceAggregationDuration is a histogram of price aggregation duration.
	PriceAggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "price_aggregation_duration_seconds",
			Help:    "Duration of price aggregation operations",
			Buckets: prometheus.DefBuckets,
		},
	)

	// OutlierRejectionsTotal is a counter of rejected outlier quotes.
	OutlierRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outlier_rejections_total",
			Help: "Total number of outlier quotes rejected during aggregation",
		},
		[]string{"token"},
	)

	// AggregationConfidence is a gauge of the latest confidence per token.
	AggregationConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aggregation_confidence",
			Help: "Confidence score of the most recent aggregation for a token",
		},
		[]string{"token"},
	)

	// CacheHitsTotal is a counter of cache hits.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of price cache hits",
		},
	)

	// CacheMissesTotal is a counter of cache misses.
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of price cache misses",
		},
	)

	// RefreshCyclesTotal is a counter of scheduler refresh cycles.
	RefreshCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refresh_cycles_total",
			Help: "Total number of hot token refresh cycles",
		},
		[]string{"status"},
	)

	// HTTPRequestsTotal is a counter of total HTTP requests.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	// HTTPRequestDuration is a histogram of HTTP request latencies.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)
)

// Init initializes Prometheus metrics registry.
func Init() {
	// Register all metrics
	prometheus.MustRegister(
		SourceRequestsTotal,
		SourceFailuresTotal,
		SourceFetchDuration,
		PriceAggregationDuration,
		OutlierRejectionsTotal,
		AggregationConfidence,
		CacheHitsTotal,
		CacheMissesTotal,
		RefreshCyclesTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// ServeHTTP serves Prometheus metrics on the specified address.
func ServeHTTP(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// RecordSourceRequest records a fetch attempt and its outcome.
func RecordSourceRequest(source string, success bool, duration time.Duration) {
	SourceRequestsTotal.WithLabelValues(source).Inc()
	if success {
		SourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	} else {
		SourceFailuresTotal.WithLabelValues(source).Inc()
	}
}

// RecordAggregation records a price aggregation operation.
func RecordAggregation(token string, confidence float64, duration time.Duration) {
	PriceAggregationDuration.Observe(duration.Seconds())
	AggregationConfidence.WithLabelValues(token).Set(confidence)
}

// RecordOutlierRejection records an outlier rejection.
func RecordOutlierRejection(token string) {
	OutlierRejectionsTotal.WithLabelValues(token).Inc()
}

// RecordCacheHit records a price cache hit.
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a price cache miss.
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordRefreshCycle records a scheduler refresh cycle outcome.
func RecordRefreshCycle(status string) {
	RefreshCyclesTotal.WithLabelValues(status).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
