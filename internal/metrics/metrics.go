package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Chain node
	ChainRPCCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hashauth",
		Subsystem: "chain",
		Name:      "rpc_calls_total",
		Help:      "Total chain node calls by method and outcome",
	}, []string{"method", "status"})

	ChainRateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hashauth",
		Subsystem: "chain",
		Name:      "rate_limit_waits_total",
		Help:      "Total chain node calls delayed by the client rate limiter",
	})

	ChainSubmitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hashauth",
		Subsystem: "chain",
		Name:      "submit_duration_seconds",
		Help:      "Time from building a registration transaction to its receipt",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	})

	// Registry
	RegistrySubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hashauth",
		Subsystem: "registry",
		Name:      "submissions_total",
		Help:      "Total product registrations by outcome",
	}, []string{"status"})

	RegistryQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hashauth",
		Subsystem: "registry",
		Name:      "auth_queries_total",
		Help:      "Total product authentication queries by result",
	}, []string{"result"})

	// Engine worker
	WorkerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hashauth",
		Subsystem: "worker",
		Name:      "messages_total",
		Help:      "Total registration messages handled by the engine worker",
	}, []string{"status"})

	// Ingestion
	IngestionBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hashauth",
		Subsystem: "ingestion",
		Name:      "batches_total",
		Help:      "Total registration batches flushed by the ingestion batch processor",
	}, []string{"status"})
)
