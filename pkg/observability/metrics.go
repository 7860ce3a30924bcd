package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "railyard"

// Metrics holds the engine collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	Turns        *prometheus.CounterVec
	TurnDuration prometheus.Histogram
	Intents      *prometheus.CounterVec
	FlowEntries  *prometheus.CounterVec
	FlowExits    *prometheus.CounterVec
	Guards       *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses a private registry, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "turns_total",
			Help:      "Completed user turns by outcome.",
		}, []string{"outcome"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall-clock duration of user turns.",
			Buckets:   prometheus.DefBuckets,
		}),
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "intents_total",
			Help:      "Resolved canonical forms.",
		}, []string{"intent"}),
		FlowEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "flow_entries_total",
			Help:      "Flows entered.",
		}, []string{"flow"}),
		FlowExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "flow_exits_total",
			Help:      "Flows left, by reason.",
		}, []string{"flow", "reason"}),
		Guards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "guard_verdicts_total",
			Help:      "Guard verdicts by checkpoint.",
		}, []string{"checkpoint", "guard", "verdict"}),
	}
	reg.MustRegister(m.Turns, m.TurnDuration, m.Intents, m.FlowEntries, m.FlowExits, m.Guards)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			m.Turns.WithLabelValues(e.Outcome).Inc()
			m.TurnDuration.Observe(e.Duration.Seconds())
		},
		OnIntentResolved: func(_ context.Context, e *domain.IntentEvent) {
			m.Intents.WithLabelValues(e.Intent).Inc()
		},
		OnFlowEnter: func(_ context.Context, e *domain.FlowEvent) {
			m.FlowEntries.WithLabelValues(e.Flow).Inc()
		},
		OnFlowExit: func(_ context.Context, e *domain.FlowEvent) {
			m.FlowExits.WithLabelValues(e.Flow, e.Reason).Inc()
		},
		OnGuard: func(_ context.Context, e *domain.GuardEvent) {
			m.Guards.WithLabelValues(string(e.Checkpoint), e.Guard, string(e.Verdict)).Inc()
		},
	}
}

// Handler serves the registry m was registered with in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
