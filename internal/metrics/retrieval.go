package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval Prometheus metrics: query understanding, search and clustering.
var (
	QueryStageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_stage_errors_total",
			Help:      "Query understanding stages that fell back to their neutral output",
		},
		[]string{"stage"},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"mode", "status"}, // status: "ok" / "degraded" / "invalid"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search pipeline duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	SearchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_total",
			Help:      "Response cache hits, misses and errors",
		},
		[]string{"result"}, // "hit" / "miss" / "error"
	)

	SearchSourceErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_source_errors_total",
			Help:      "Data sources that failed and were skipped",
		},
		[]string{"source"}, // "vector_store" / "text_store" / "embedder" / "reranker"
	)

	ClusterRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cluster_runs_total",
			Help:      "Total number of clustering runs",
		},
		[]string{"algorithm"},
	)

	ClusterDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cluster_duration_seconds",
			Help:      "Clustering run duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"algorithm"},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers query, search and clustering metrics.
// Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueryStageErrorsTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchCacheTotal)
	prometheus.MustRegister(SearchSourceErrorsTotal)
	prometheus.MustRegister(ClusterRunsTotal)
	prometheus.MustRegister(ClusterDuration)
	retrievalMetricsRegistered = true
}
