package resilience

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-buku/internal/obs"
)

var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "upstream_breaker_state",
			Help: "Current breaker state per upstream: 0=closed,1=open,2=half-open",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_breaker_transition_total",
			Help: "Count of breaker state transitions per upstream",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_breaker_open_total",
			Help: "Number of times an upstream breaker transitioned into open state",
		},
		[]string{"target"},
	)
	RetryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_retry_total",
			Help: "Retries issued against an upstream after a failed attempt",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, RetryTotal)
}

func setStateGauge(target string, s State) {
	BreakerState.WithLabelValues(target).Set(float64(s))
}

// recordTransition updates breaker metrics and logs the change with the
// request's trace ID when one is present.
func recordTransition(ctx context.Context, fallback zerolog.Logger, target string, from, to State) {
	setStateGauge(target, to)
	BreakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
	if to == Open {
		BreakerOpenedTotal.WithLabelValues(target).Inc()
	}

	logger := obs.LoggerFrom(ctx, fallback)
	evt := logger.Info().Str("target", target).Str("from_state", from.String()).Str("to_state", to.String())
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		evt = evt.Str("trace_id", span.TraceID().String())
	}
	evt.Msg("breaker_transition")
}
