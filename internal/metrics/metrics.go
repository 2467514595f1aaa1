package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qkfence_queries_total",
		Help: "Total number of point-in-fence queries",
	})
	QueryDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "qkfence_query_duration_ms",
		Help:    "Point query duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 20, 50, 100, 200, 500},
	})
	EmptyResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qkfence_empty_results_total",
		Help: "Total number of queries matching no fence",
	})
	LRUHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qkfence_lru_hits_total",
		Help: "Total in-process cache hits",
	})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qkfence_redis_hits_total",
		Help: "Total redis cache hits",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qkfence_redis_misses_total",
		Help: "Total redis cache misses",
	})
	FillDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "qkfence_fill_duration_ms",
		Help:    "Polygon rasterize and compact duration in milliseconds",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 30000, 120000},
	})
	FillSquares = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "qkfence_fill_squares",
		Help:    "Quadkeys kept per filled polygon after compaction",
		Buckets: prometheus.ExponentialBuckets(1, 4, 12),
	})
	FillMergesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qkfence_fill_merges_total",
		Help: "Total sibling quadruples merged into their parent",
	})
	FencesInsertedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qkfence_fences_inserted_total",
		Help: "Total fences written to the store",
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qkfence_http_requests_total",
		Help: "HTTP API requests by route and status",
	}, []string{"route", "status"})
)

func init() {
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDurationMs)
	prometheus.MustRegister(EmptyResultsTotal)
	prometheus.MustRegister(LRUHitsTotal)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
	prometheus.MustRegister(FillDurationMs)
	prometheus.MustRegister(FillSquares)
	prometheus.MustRegister(FillMergesTotal)
	prometheus.MustRegister(FencesInsertedTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// Handler：Prometheus 抓取端点，在主入口挂载
func Handler() http.Handler { return promhttp.Handler() }
