// Package metrics exposes Prometheus counters for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "notispend"

// Outcome labels.
const (
	OutcomeFilteredNotPaid = "filtered_not_paid"
	OutcomeFilteredWallet  = "filtered_wallet"
	OutcomePersisted       = "persisted"
	OutcomeConflict        = "conflict"
	OutcomeFailed          = "failed"
	OutcomeInvalid         = "invalid"
)

// CategoryOther labels caller supplied expense types outside the fixed set.
const CategoryOther = "other"

// Amount extraction result labels.
const (
	AmountFound     = "found"
	AmountNotFound  = "not_found"
	AmountAmbiguous = "ambiguous"
	AmountCaller    = "caller"
)

// Metrics holds the pipeline counters. A nil *Metrics records nothing.
type Metrics struct {
	Notifications   *prometheus.CounterVec
	Classifications *prometheus.CounterVec
	Extractions     *prometheus.CounterVec
	BackfillUpdates prometheus.Counter
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Inbound notifications by terminal outcome.",
		}, []string{"outcome"}),
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Expense type decisions by stage and category.",
		}, []string{"stage", "category"}),
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amount_extractions_total",
			Help:      "Amount extraction attempts by result.",
		}, []string{"result"}),
		BackfillUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_updates_total",
			Help:      "Rows whose amount was rewritten by a backfill.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Notifications, m.Classifications, m.Extractions, m.BackfillUpdates)
	}
	return m
}

// Outcome counts one terminal pipeline outcome.
func (m *Metrics) Outcome(outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(outcome).Inc()
}

// Classification counts one expense type decision.
func (m *Metrics) Classification(stage, category string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(stage, category).Inc()
}

// Extraction counts one amount extraction result.
func (m *Metrics) Extraction(result string) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(result).Inc()
}

// Backfilled counts rows updated by a backfill run.
func (m *Metrics) Backfilled(n int) {
	if m == nil {
		return
	}
	m.BackfillUpdates.Add(float64(n))
}
