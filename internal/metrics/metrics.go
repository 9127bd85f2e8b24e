// Package metrics holds the Prometheus collectors for the responder.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Trigger outcomes.
const (
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
)

// Metrics is the set of collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	Triggers          *prometheus.CounterVec
	Actions           *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	ClaimRacesLost    prometheus.Counter
	LogWriteFailures  *prometheus.CounterVec
	ClaimsSwept       prometheus.Counter
	InFlight          prometheus.Gauge
	GenerateDurations *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Triggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forumbot_triggers_total",
				Help: "Trigger events by outcome",
			},
			[]string{"outcome"},
		),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forumbot_actions_total",
				Help: "Executed decisions by action",
			},
			[]string{"action"},
		),
		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forumbot_provider_errors_total",
				Help: "Failed generation calls by provider",
			},
			[]string{"provider"},
		),
		ClaimRacesLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forumbot_claim_races_lost_total",
			Help: "Claims released after losing a detected race",
		}),
		LogWriteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forumbot_log_write_failures_total",
				Help: "Failed execution log writes by sink",
			},
			[]string{"sink"},
		),
		ClaimsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forumbot_claims_swept_total",
			Help: "Stale processing placeholders marked abandoned",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forumbot_webhooks_in_flight",
			Help: "Webhook invocations currently being processed",
		}),
		GenerateDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forumbot_generate_duration_seconds",
				Help:    "Generation call latency by provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
	}

	m.registry.MustRegister(
		m.Triggers,
		m.Actions,
		m.ProviderErrors,
		m.ClaimRacesLost,
		m.LogWriteFailures,
		m.ClaimsSwept,
		m.InFlight,
		m.GenerateDurations,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Trigger(outcome string) {
	if m != nil {
		m.Triggers.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Action(action string) {
	if m != nil {
		m.Actions.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) ProviderError(provider string) {
	if m != nil {
		m.ProviderErrors.WithLabelValues(provider).Inc()
	}
}

func (m *Metrics) RaceLost() {
	if m != nil {
		m.ClaimRacesLost.Inc()
	}
}

func (m *Metrics) LogWriteFailed(sink string) {
	if m != nil {
		m.LogWriteFailures.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) Swept(n int) {
	if m != nil {
		m.ClaimsSwept.Add(float64(n))
	}
}

func (m *Metrics) ObserveGenerate(provider string, seconds float64) {
	if m != nil {
		m.GenerateDurations.WithLabelValues(provider).Observe(seconds)
	}
}
