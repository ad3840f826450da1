package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safestreets_upstream_calls_total",
			Help: "Total calls to upstream data sources",
		},
		[]string{"source", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "safestreets_upstream_latency_seconds",
			Help:    "Upstream data source call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safestreets_analyses_total",
			Help: "Total walkability analyses performed",
		},
		[]string{"status"},
	)

	SnapshotCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safestreets_snapshot_cache_lookups_total",
			Help: "Snapshot cache lookups by outcome",
		},
		[]string{"source", "outcome"},
	)
)
