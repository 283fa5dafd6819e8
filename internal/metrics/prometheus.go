package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IngestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_insights_ingestions_total",
			Help: "Total ingestion requests by status",
		},
		[]string{"status"},
	)

	IngestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feedback_insights_ingestion_duration_seconds",
			Help:    "Time to analyse and publish one batch",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	ItemsAnalyzed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_insights_items_analyzed_total",
			Help: "Feedback items analysed by outcome",
		},
		[]string{"outcome"},
	)

	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feedback_insights_item_analysis_duration_seconds",
			Help:    "Per-item language model analysis latency",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	PublishedBatchSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedback_insights_published_batch_size",
			Help: "Number of results in the latest published batch",
		},
	)

	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_insights_commands_total",
			Help: "Chat commands handled by command and result code",
		},
		[]string{"command", "result"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedback_insights_sessions",
			Help: "Number of chat sessions holding navigation state",
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_insights_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_insights_llm_requests_total",
			Help: "LLM requests by purpose and status",
		},
		[]string{"purpose", "status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feedback_insights_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_insights_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_insights_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			IngestionsTotal,
			IngestionDuration,
			ItemsAnalyzed,
			AnalysisDuration,
			PublishedBatchSize,
			CommandsTotal,
			ActiveSessions,
			LLMTokensUsed,
			LLMRequests,
			CircuitBreakerState,
			CacheHits,
			CacheMisses,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
