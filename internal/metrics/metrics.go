package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of upstream card API calls",
		},
		[]string{"op", "outcome"},
	)

	FetchCapHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_cap_hits_total",
			Help: "Number of local aggregation scans truncated by the fetch cap",
		},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "search_duration_seconds",
			Help: "Duration of search requests by fetch strategy",
		},
		[]string{"mode"},
	)

	CountCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "count_cache_hits_total",
			Help: "Count probes answered from the warm cache",
		},
	)

	CountCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "count_cache_misses_total",
			Help: "Count probes that had to go upstream",
		},
	)
)
