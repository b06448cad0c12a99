package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "builder_step_duration_seconds",
			Help:    "Pipeline step duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"step"},
	)

	StepTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "builder_step_total",
			Help: "Total pipeline step executions",
		},
		[]string{"step", "status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "builder_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	DocumentsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "builder_documents_generated_total",
			Help: "Total policy documents generated",
		},
	)

	DocumentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "builder_documents_ingested_total",
			Help: "Total documents ingested into the search index",
		},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "builder_chunks_indexed_total",
			Help: "Total document chunks indexed",
		},
	)

	EmbeddingCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "builder_embedding_cache_hits_total",
			Help: "Embedding cache hits",
		},
	)

	EmbeddingCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "builder_embedding_cache_misses_total",
			Help: "Embedding cache misses",
		},
	)

	FabricRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "builder_fabric_requests_total",
			Help: "Total Fabric API requests",
		},
		[]string{"operation", "status"},
	)

	ChatToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "builder_chat_tool_calls_total",
			Help: "Total chat tool invocations",
		},
		[]string{"tool", "status"},
	)

	ChatTurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "builder_chat_turn_duration_seconds",
			Help:    "Chat turn duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

func Init() {
	prometheus.MustRegister(StepDuration)
	prometheus.MustRegister(StepTotal)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(DocumentsGenerated)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(ChunksIndexed)
	prometheus.MustRegister(EmbeddingCacheHits)
	prometheus.MustRegister(EmbeddingCacheMisses)
	prometheus.MustRegister(FabricRequestsTotal)
	prometheus.MustRegister(ChatToolCalls)
	prometheus.MustRegister(ChatTurnDuration)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
