package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_agent_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"classification"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_agent_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"classification", "status"},
	)

	DegradationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_agent_degradation_total",
			Help: "Total non-fatal fallbacks taken while answering",
		},
		[]string{"kind"},
	)

	ContextWindowSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_agent_context_window_size",
			Help:    "Number of context items assembled per query",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
		},
	)

	EvaluationScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_agent_evaluation_score",
			Help:    "Per-criterion evaluation scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"criterion"},
	)

	StorageWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_agent_storage_writes_total",
			Help: "Background persistence attempts by outcome",
		},
		[]string{"status"},
	)

	LiveFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_agent_live_fetch_total",
			Help: "Live data provider calls by outcome",
		},
		[]string{"status"},
	)

	UserSatisfaction = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_agent_satisfaction_score",
			Help: "User feedback satisfaction score",
		},
		[]string{"helpful"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_agent_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_agent_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_agent_documents_processed_total",
			Help: "Total documents processed",
		},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_agent_chunks_indexed_total",
			Help: "Total document chunks indexed into the vector store",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(DegradationTotal)
	prometheus.MustRegister(ContextWindowSize)
	prometheus.MustRegister(EvaluationScore)
	prometheus.MustRegister(StorageWrites)
	prometheus.MustRegister(LiveFetchTotal)
	prometheus.MustRegister(UserSatisfaction)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(ChunksIndexed)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
