// Package metrics defines the Prometheus collectors recorded by the build and
// query pipelines. Each invocation owns its own registry, and batch runs dump
// it to a node-exporter textfile.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Query result types.
const (
	ResultMatch = "match"
	ResultEmpty = "empty"
)

// Metrics holds all Prometheus collectors for one invocation.
type Metrics struct {
	Registry *prometheus.Registry

	DocsLoadedTotal    prometheus.Counter
	DocsSkippedTotal   prometheus.Counter
	IndexTerms         prometheus.Gauge
	IndexDocuments     prometheus.Gauge
	BuildDuration      prometheus.Histogram
	DumpBytes          *prometheus.GaugeVec
	StorageErrorsTotal *prometheus.CounterVec
	QueriesTotal       *prometheus.CounterVec
	QueryLatency       prometheus.Histogram
	QueryResultsCount  prometheus.Histogram
	CacheHitsTotal     prometheus.Counter
	CacheMissesTotal   prometheus.Counter
}

// New creates all collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		DocsLoadedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "invindex_documents_loaded_total",
				Help: "Total documents handed to the index builder.",
			},
		),
		DocsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "invindex_documents_skipped_total",
				Help: "Total malformed document records skipped by the loader.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "invindex_index_terms",
				Help: "Number of distinct terms in the current index.",
			},
		),
		IndexDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "invindex_index_documents",
				Help: "Number of distinct document ids in the current index.",
			},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "invindex_build_duration_seconds",
				Help:    "Time spent building the inverted index.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
		DumpBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "invindex_dump_bytes",
				Help: "Size of the persisted index by codec.",
			},
			[]string{"codec"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invindex_storage_errors_total",
				Help: "Storage policy failures by operation (dump, load).",
			},
			[]string{"op"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invindex_queries_total",
				Help: "Total queries by result type (match, empty).",
			},
			[]string{"result_type"},
		),
		QueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "invindex_query_latency_seconds",
				Help:    "Query latency in seconds.",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "invindex_query_results_count",
				Help:    "Number of document ids returned per query.",
				Buckets: []float64{0, 1, 5, 10, 50, 100, 1000, 10000},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "invindex_cache_hits_total",
				Help: "Total query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "invindex_cache_misses_total",
				Help: "Total query cache misses.",
			},
		),
	}

	m.Registry.MustRegister(
		m.DocsLoadedTotal,
		m.DocsSkippedTotal,
		m.IndexTerms,
		m.IndexDocuments,
		m.BuildDuration,
		m.DumpBytes,
		m.StorageErrorsTotal,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// ObserveQuery records one executed query.
func (m *Metrics) ObserveQuery(results int, seconds float64) {
	if m == nil {
		return
	}
	resultType := ResultMatch
	if results == 0 {
		resultType = ResultEmpty
	}
	m.QueriesTotal.WithLabelValues(resultType).Inc()
	m.QueryLatency.Observe(seconds)
	m.QueryResultsCount.Observe(float64(results))
}

// WriteTextfile writes the registry in the Prometheus text format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
