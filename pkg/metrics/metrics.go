package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RelayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total number of forward requests by terminal decision (count)",
		},
		[]string{"decision"},
	)

	RelayProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_processing_duration_ms",
			Help:    "End-to-end pipeline duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"decision"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"scope", "status"},
	)

	DeduplicateMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_messages_total",
			Help: "Total number of codes checked by the dedup cache (count)",
		},
		[]string{"status"},
	)

	DedupProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dedup_processing_duration_ms",
			Help:    "Dedup check duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	ExtractionRuleHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_rule_hits_total",
			Help: "Total number of codes extracted per pattern rule (count)",
		},
		[]string{"rule"},
	)

	PushAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_attempts_total",
			Help: "Total number of per-target push attempts (count)",
		},
		[]string{"status"},
	)

	PushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "push_duration_ms",
			Help:    "Duration of a single push call in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of counter/marker store operations (count)",
		},
		[]string{"backend", "operation", "status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"operation"},
	)
)

func RegisterRelayMetrics() {
	prometheus.MustRegister(RelayRequestsTotal)
	prometheus.MustRegister(RelayProcessingDuration)
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(DeduplicateMessagesTotal)
	prometheus.MustRegister(DedupProcessingDuration)
	prometheus.MustRegister(ExtractionRuleHitsTotal)
	prometheus.MustRegister(PushAttemptsTotal)
	prometheus.MustRegister(PushDuration)
	prometheus.MustRegister(StoreOperationsTotal)
	prometheus.MustRegister(FallbackUsageTotal)
	prometheus.MustRegister(RetryAttemptsTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveRelayDuration(duration time.Duration, decision string) {
	RelayProcessingDuration.WithLabelValues(decision).Observe(float64(duration.Milliseconds()))
}

func IncRelayRequest(decision string) {
	RelayRequestsTotal.WithLabelValues(decision).Inc()
}

func IncRateLimit(scope, status string) {
	RateLimitRequestsTotal.WithLabelValues(scope, status).Inc()
}

func ObserveDedupDuration(duration time.Duration, status string) {
	DedupProcessingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func IncExtractionRuleHit(rule string) {
	ExtractionRuleHitsTotal.WithLabelValues(rule).Inc()
}

func ObservePush(duration time.Duration, status string) {
	PushAttemptsTotal.WithLabelValues(status).Inc()
	PushDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func IncStoreOperation(backend, operation, status string) {
	StoreOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}
