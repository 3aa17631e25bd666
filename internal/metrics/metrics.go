package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convo_gateway_messages_total",
			Help: "Total messages handled, by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convo_gateway_rate_limited_total",
			Help: "Total messages rejected by the rate limiter",
		},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "convo_gateway_provider_latency_seconds",
			Help: "Generation provider latency in seconds",
		},
		[]string{"provider"},
	)

	ProviderFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convo_gateway_provider_fallbacks_total",
			Help: "Total fallback hops to the secondary provider",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "convo_gateway_active_sessions",
			Help: "Number of sessions in the in-process cache",
		},
	)

	PersistenceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convo_gateway_persistence_failures_total",
			Help: "Total durable-backing write failures (degraded mode)",
		},
	)
)
