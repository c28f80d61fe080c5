package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "jan"
	subsystem = "session_api"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	TokensPromptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tokens_prompt_total",
			Help:      "Total prompt tokens consumed",
		},
		[]string{"model"},
	)

	TokensCompletionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tokens_completion_total",
			Help:      "Total completion tokens generated",
		},
		[]string{"model"},
	)

	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provider_errors_total",
			Help:      "Provider call failures by kind",
		},
		[]string{"model", "error_type"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provider_latency_seconds",
			Help:      "Latency of completion provider calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"model"},
	)

	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_total",
			Help:      "Send operations by outcome (assistant, degraded, rejected)",
		},
		[]string{"outcome"},
	)

	ConversationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conversations_created_total",
			Help:      "Total conversations created",
		},
	)

	Conversations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conversations",
			Help:      "Stored conversations by state, refreshed periodically",
		},
		[]string{"state"},
	)
)

func RecordRequest(method, endpoint, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func RecordTokens(model string, prompt, completion int) {
	if prompt > 0 {
		TokensPromptTotal.WithLabelValues(model).Add(float64(prompt))
	}
	if completion > 0 {
		TokensCompletionTotal.WithLabelValues(model).Add(float64(completion))
	}
}

func RecordProviderError(model, errorType string) {
	ProviderErrorsTotal.WithLabelValues(model, errorType).Inc()
}

func ObserveProviderLatency(model string, d time.Duration) {
	ProviderLatency.WithLabelValues(model).Observe(d.Seconds())
}

func RecordMessage(outcome string) {
	MessagesTotal.WithLabelValues(outcome).Inc()
}

func RecordConversationCreated() {
	ConversationsCreatedTotal.Inc()
}

func SetConversationCounts(active, archived int64) {
	Conversations.WithLabelValues("active").Set(float64(active))
	Conversations.WithLabelValues("archived").Set(float64(archived))
}
