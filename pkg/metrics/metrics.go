// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	IngestsTotal         *prometheus.CounterVec
	AnswersTotal         *prometheus.CounterVec
	ExternalCallDuration *prometheus.HistogramVec
	ListingCacheHits     prometheus.Counter
	ListingCacheMisses   prometheus.Counter
	CorpusDocuments      prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
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
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		IngestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_ingests_total",
				Help: "Document ingestion attempts by outcome (ingested, dedup, error).",
			},
			[]string{"outcome"},
		),
		AnswersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_answers_total",
				Help: "Answer requests by outcome (answered, no_documents, bad_request, error).",
			},
			[]string{"outcome"},
		),
		ExternalCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "external_call_duration_seconds",
				Help:    "Latency of calls to the parser and QA engine services.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service", "operation"},
		),
		ListingCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "listing_cache_hits_total",
				Help: "Listing cache hits.",
			},
		),
		ListingCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "listing_cache_misses_total",
				Help: "Listing cache misses.",
			},
		),
		CorpusDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "corpus_documents",
				Help: "Number of documents currently in the corpus.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.IngestsTotal,
		m.AnswersTotal,
		m.ExternalCallDuration,
		m.ListingCacheHits,
		m.ListingCacheMisses,
		m.CorpusDocuments,
	)
	return m
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
