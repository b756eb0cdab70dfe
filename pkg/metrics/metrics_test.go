package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Outcome(OutcomePersisted)
	m.Outcome(OutcomePersisted)
	m.Outcome(OutcomeFilteredWallet)
	m.Classification("emoji", "grocery")
	m.Extraction(AmountFound)
	m.Backfilled(3)
	m.Backfilled(0)

	if got := testutil.ToFloat64(m.Notifications.WithLabelValues(OutcomePersisted)); got != 2 {
		t.Errorf("persisted: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Notifications.WithLabelValues(OutcomeFilteredWallet)); got != 1 {
		t.Errorf("filtered_wallet: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Classifications.WithLabelValues("emoji", "grocery")); got != 1 {
		t.Errorf("classification: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Extractions.WithLabelValues(AmountFound)); got != 1 {
		t.Errorf("extraction: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.BackfillUpdates); got != 3 {
		t.Errorf("backfill: got %v, want 3", got)
	}

	if n := testutil.CollectAndCount(m.Notifications, "notispend_notifications_total"); n != 2 {
		t.Errorf("notification series: got %d, want 2", n)
	}
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	m.Outcome(OutcomeFailed)
	m.Classification("keyword", "fuel")
	m.Extraction(AmountNotFound)
	m.Backfilled(1)
}

func TestNew_Unregistered(t *testing.T) {
	m := New(nil)
	m.Outcome(OutcomeConflict)
	if got := testutil.ToFloat64(m.Notifications.WithLabelValues(OutcomeConflict)); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
}
