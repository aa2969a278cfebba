package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts day record lookups by result (hit|miss|corrupt).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devotional_cache_lookups_total",
			Help: "Total number of daily record cache lookups",
		},
		[]string{"result"},
	)

	// PrimaryFetches counts verse fetches by result (success|failure).
	PrimaryFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devotional_primary_fetches_total",
			Help: "Total number of primary verse fetches",
		},
		[]string{"result"},
	)

	// Enrichments counts context generation attempts by outcome kind.
	Enrichments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devotional_enrichments_total",
			Help: "Total number of context generation attempts",
		},
		[]string{"result"},
	)

	// EvictedRecords counts stale day records removed from the store.
	EvictedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devotional_evicted_records_total",
			Help: "Total number of stale day records evicted",
		},
	)

	// WeatherLookups counts weather cache lookups by result (hit|miss).
	WeatherLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devotional_weather_lookups_total",
			Help: "Total number of weather cache lookups",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "devotional_http_latency_seconds",
			Help:    "HTTP endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
