// Package metrics provides Prometheus metrics for the referral workflow.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drfirst/go-referral/internal/domain/referral"
	"github.com/drfirst/go-referral/internal/letter"
	"github.com/drfirst/go-referral/pkg/circuitbreaker"
)

// Metrics holds all application metrics
type Metrics struct {
	ReferralsCreated    prometheus.Counter
	ReferralsCompleted  prometheus.Counter
	StateResets         prometheus.Counter
	LettersEdited       prometheus.Counter
	SelectionToggles    *prometheus.CounterVec
	LetterGenerations   *prometheus.CounterVec
	GenerationDuration  prometheus.Histogram
	PersistenceFailures *prometheus.CounterVec
	OutboxPending       prometheus.Gauge
	CircuitBreakerState *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them on reg. A nil reg uses a
// private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		ReferralsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referrals_created_total",
			Help: "Total referrals started",
		}),
		ReferralsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referrals_completed_total",
			Help: "Total referrals sent to history",
		}),
		StateResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referral_state_resets_total",
			Help: "Total full state resets",
		}),
		LettersEdited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referral_letters_edited_total",
			Help: "Total manual letter edits",
		}),
		SelectionToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_selection_toggles_total",
			Help: "Evidence selection toggles by category",
		}, []string{"category"}),
		LetterGenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_letter_generations_total",
			Help: "Letter generation attempts by outcome",
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "referral_letter_generation_duration_seconds",
			Help:    "Letter generation duration",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		PersistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_state_persistence_failures_total",
			Help: "State load or save failures by operation",
		}, []string{"op"}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.ReferralsCreated,
		m.ReferralsCompleted,
		m.StateResets,
		m.LettersEdited,
		m.SelectionToggles,
		m.LetterGenerations,
		m.GenerationDuration,
		m.PersistenceFailures,
		m.OutboxPending,
		m.CircuitBreakerState,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	return m
}

// Publish counts lifecycle events
func (m *Metrics) Publish(_ context.Context, event *referral.Event) error {
	switch event.EventType {
	case referral.EventReferralCreated:
		m.ReferralsCreated.Inc()
	case referral.EventReferralCompleted:
		m.ReferralsCompleted.Inc()
	case referral.EventStateReset:
		m.StateResets.Inc()
	case referral.EventLetterEdited:
		m.LettersEdited.Inc()
	}
	return nil
}

// ObserveToggle counts a selection toggle
func (m *Metrics) ObserveToggle(category string) {
	m.SelectionToggles.WithLabelValues(category).Inc()
}

// ObserveGeneration records a generation attempt
func (m *Metrics) ObserveGeneration(outcome letter.Outcome, elapsed time.Duration) {
	m.LetterGenerations.WithLabelValues(string(outcome)).Inc()
	if outcome != letter.OutcomeRejected {
		m.GenerationDuration.Observe(elapsed.Seconds())
	}
}

// ObservePersistenceFailure counts a state store failure
func (m *Metrics) ObservePersistenceFailure(op string) {
	m.PersistenceFailures.WithLabelValues(op).Inc()
}

// ObserveOutboxPending records the outbox backlog
func (m *Metrics) ObserveOutboxPending(pending int64) {
	m.OutboxPending.Set(float64(pending))
}

// ObserveBreaker records a circuit breaker transition
func (m *Metrics) ObserveBreaker(name string, to circuitbreaker.State) {
	m.CircuitBreakerState.WithLabelValues(name).Set(to.Value())
}

// Handler returns the HTTP handler for the registry the metrics live on
func (m *Metrics) Handler() http.Handler {
	if m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
