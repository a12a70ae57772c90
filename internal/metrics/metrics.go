package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Calculator counters and histograms, partitioned by network where the
// value depends on which node answered.

var (
	// RPC
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reorgcalc",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total node RPC calls by method and status",
	}, []string{"network", "method", "status"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reorgcalc",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total times RPC calls waited for rate limiter",
	}, []string{"network"})

	RPCLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reorgcalc",
		Subsystem: "rpc",
		Name:      "call_duration_seconds",
		Help:      "Node RPC round-trip duration",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"network", "method"})

	// Circuit breaker (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "reorgcalc",
		Subsystem: "rpc",
		Name:      "circuit_breaker_state",
		Help:      "Node source circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"network"})

	// Accumulator
	AccumulatorBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reorgcalc",
		Subsystem: "accumulator",
		Name:      "blocks_total",
		Help:      "Total per-block difficulties folded into chain work",
	}, []string{"network"})

	// Calculator
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reorgcalc",
		Subsystem: "calculator",
		Name:      "evaluations_total",
		Help:      "Total reorg feasibility evaluations by result",
	}, []string{"network", "result"})

	EvaluationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reorgcalc",
		Subsystem: "calculator",
		Name:      "evaluation_duration_seconds",
		Help:      "Reorg feasibility evaluation duration (including range scan)",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
	}, []string{"network"})

	// Search
	SearchCandidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reorgcalc",
		Subsystem: "search",
		Name:      "candidates_total",
		Help:      "Total fork candidates by outcome (viable, too_slow, failed, skipped)",
	}, []string{"network", "outcome"})

	// Header cache
	HeaderCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reorgcalc",
		Subsystem: "header_cache",
		Name:      "lookups_total",
		Help:      "Compact target cache lookups by tier (memory, disk) and result (hit, miss, stale, error)",
	}, []string{"tier", "result"})

	HeaderStoreWrites = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "reorgcalc",
		Subsystem: "header_cache",
		Name:      "store_writes_total",
		Help:      "Compact targets persisted to the on-disk header store",
	})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reorgcalc",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent by channel and type",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reorgcalc",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts suppressed by cooldown",
	}, []string{"channel", "type"})
)
