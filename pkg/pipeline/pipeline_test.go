package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ArionMiles/notispend/pkg/amount"
	"github.com/ArionMiles/notispend/pkg/api"
	"github.com/ArionMiles/notispend/pkg/metrics"
	"github.com/ArionMiles/notispend/pkg/store/memory"
)

func ptr[T any](v T) *T { return &v }

func event(pkg, title, text string) api.Notification {
	return api.Notification{
		PackageName: pkg,
		ID:          1,
		Key:         "0|" + pkg + "|1",
		PostTime:    1700000000000,
		IsClearable: true,
		Title:       ptr(title),
		Text:        ptr(text),
	}
}

func newPipeline(t *testing.T) (*Pipeline, *memory.Store, *metrics.Metrics) {
	t.Helper()
	store := memory.New()
	m := metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, m, logger), store, m
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		pkg  string
		text *string
		want Decision
	}{
		{"paid", "com.bank", ptr("Paid €5.00"), Decision{Accepted: true}},
		{"paid any case", "com.bank", ptr("you PAID 5"), Decision{Accepted: true}},
		{"substring", "com.bank", ptr("unpaid invoice"), Decision{Accepted: true}},
		{"no paid", "com.bank", ptr("Payment received"), Decision{Reason: ReasonNotPaid}},
		{"nil text", "com.bank", nil, Decision{Reason: ReasonNotPaid}},
		{"wallet", "com.google.android.apps.walletnfcrel", ptr("Paid €5.00"), Decision{Reason: ReasonWalletPackage}},
		{"wallet upper", "com.Samsung.WALLET", ptr("Paid €5.00"), Decision{Reason: ReasonWalletPackage}},
		{"not paid wins over wallet", "com.wallet", ptr("hello"), Decision{Reason: ReasonNotPaid}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := api.Notification{PackageName: tc.pkg, Text: tc.text}
			if got := Filter(n); got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestIngest_Persisted(t *testing.T) {
	p, store, m := newPipeline(t)

	out, err := p.Ingest(context.Background(), event("com.bank.app", "Mercadona", "Paid €12.50 at the till"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if out.Status != StatusPersisted || out.Stored == nil {
		t.Fatalf("got %+v, want persisted", out)
	}

	n := out.Stored.Notification
	if n.ExpenseType == nil || *n.ExpenseType != "grocery" {
		t.Errorf("expense type: got %v, want grocery", n.ExpenseType)
	}
	if n.Amount == nil || *n.Amount != 12.5 {
		t.Errorf("amount: got %v, want 12.5", n.Amount)
	}
	if n.Currency == nil || *n.Currency != "€" {
		t.Errorf("currency: got %v, want €", n.Currency)
	}

	rows, _ := store.List(context.Background(), api.Page{Limit: 10})
	if len(rows) != 1 {
		t.Fatalf("stored rows: got %d, want 1", len(rows))
	}
	if got := testutil.ToFloat64(m.Notifications.WithLabelValues(metrics.OutcomePersisted)); got != 1 {
		t.Errorf("persisted counter: got %v", got)
	}
	if got := testutil.ToFloat64(m.Classifications.WithLabelValues("keyword", "grocery")); got != 1 {
		t.Errorf("classification counter: got %v", got)
	}
}

func TestIngest_CallerExpenseTypeLabels(t *testing.T) {
	p, _, m := newPipeline(t)

	types := []string{"travel", "groceries!!", "x-1", "x-2", "x-3"}
	for i, et := range types {
		n := event("com.bank.app", "Shop", "Paid €5.00")
		n.Key = fmt.Sprintf("0|com.bank.app|%d", i)
		n.ExpenseType = ptr(et)
		if _, err := p.Ingest(context.Background(), n); err != nil {
			t.Fatalf("Ingest(%q): %v", et, err)
		}
	}

	if got := testutil.CollectAndCount(m.Classifications); got != 2 {
		t.Errorf("classification series: got %d, want 2", got)
	}
	if got := testutil.ToFloat64(m.Classifications.WithLabelValues("caller", "travel")); got != 1 {
		t.Errorf("caller travel: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Classifications.WithLabelValues("caller", metrics.CategoryOther)); got != 4 {
		t.Errorf("caller other: got %v, want 4", got)
	}
}

func TestIngest_Filtered(t *testing.T) {
	tests := []struct {
		name   string
		n      api.Notification
		reason Reason
		metric string
	}{
		{"not paid", event("com.bank.app", "Bank", "Your statement is ready"), ReasonNotPaid, metrics.OutcomeFilteredNotPaid},
		{"wallet", event("com.google.android.apps.walletnfcrel", "Zara", "Paid €30.00"), ReasonWalletPackage, metrics.OutcomeFilteredWallet},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, store, m := newPipeline(t)

			out, err := p.Ingest(context.Background(), tc.n)
			if err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if out.Status != StatusFiltered || out.Reason != tc.reason {
				t.Errorf("got (%s, %s), want (filtered, %s)", out.Status, out.Reason, tc.reason)
			}
			if out.Notification.ExpenseType != nil || out.Notification.Amount != nil {
				t.Error("filtered notification should not be enriched")
			}
			rows, _ := store.List(context.Background(), api.Page{Limit: 10})
			if len(rows) != 0 {
				t.Errorf("filtered notification was stored")
			}
			if got := testutil.ToFloat64(m.Notifications.WithLabelValues(tc.metric)); got != 1 {
				t.Errorf("%s counter: got %v", tc.metric, got)
			}
		})
	}
}

func TestIngest_Conflict(t *testing.T) {
	p, _, m := newPipeline(t)
	n := event("com.bank.app", "Uber", "Paid €9.00")

	if _, err := p.Ingest(context.Background(), n); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	_, err := p.Ingest(context.Background(), n)
	if !errors.Is(err, api.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
	if got := testutil.ToFloat64(m.Notifications.WithLabelValues(metrics.OutcomeConflict)); got != 1 {
		t.Errorf("conflict counter: got %v", got)
	}
}

func TestIngest_Ambiguous(t *testing.T) {
	p, store, _ := newPipeline(t)

	_, err := p.Ingest(context.Background(), event("com.bank.app", "Hotel", "Paid €1,200.00"))
	if !errors.Is(err, amount.ErrAmbiguous) {
		t.Fatalf("got %v, want ErrAmbiguous", err)
	}
	rows, _ := store.List(context.Background(), api.Page{Limit: 10})
	if len(rows) != 0 {
		t.Errorf("ambiguous notification was stored")
	}
}

type failingStore struct {
	api.Store
	err error
}

func (f failingStore) Insert(context.Context, api.Notification) (api.StoredNotification, error) {
	return api.StoredNotification{}, f.err
}

func TestIngest_StoreFailure(t *testing.T) {
	cause := errors.New("connection reset")
	m := metrics.New(prometheus.NewRegistry())
	p := New(failingStore{Store: memory.New(), err: cause}, m, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := p.Ingest(context.Background(), event("com.bank.app", "Zara", "Paid €30.00"))
	if !errors.Is(err, cause) {
		t.Fatalf("got %v, want wrapped cause", err)
	}
	if errors.Is(err, api.ErrConflict) {
		t.Error("failure should not be reported as conflict")
	}
	if got := testutil.ToFloat64(m.Notifications.WithLabelValues(metrics.OutcomeFailed)); got != 1 {
		t.Errorf("failed counter: got %v", got)
	}
}

func TestEnrich(t *testing.T) {
	tests := []struct {
		name         string
		n            api.Notification
		wantType     *string
		wantAmount   *float64
		wantCurrency *string
		wantStage    string
	}{
		{
			name:         "emoji fast path",
			n:            event("com.bank", "Zara", "Paid €30.00 🛒"),
			wantType:     ptr("grocery"),
			wantAmount:   ptr(30.0),
			wantCurrency: ptr("€"),
			wantStage:    "emoji",
		},
		{
			name:      "nothing detected",
			n:         event("com.bank", "Random", "Paid something"),
			wantStage: "none",
		},
		{
			name: "caller values kept",
			n: func() api.Notification {
				n := event("com.bank", "Uber", "Paid €9.00")
				n.ExpenseType = ptr("travel")
				n.Amount = ptr(11.0)
				n.Currency = ptr("$")
				return n
			}(),
			wantType:     ptr("travel"),
			wantAmount:   ptr(11.0),
			wantCurrency: ptr("$"),
			wantStage:    "caller",
		},
		{
			name: "empty caller type is detected",
			n: func() api.Notification {
				n := event("com.bank", "Uber", "Paid $9.00")
				n.ExpenseType = ptr("")
				return n
			}(),
			wantType:     ptr("transport"),
			wantAmount:   ptr(9.0),
			wantCurrency: ptr("$"),
			wantStage:    "keyword",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, report, err := Enrich(tc.n)
			if err != nil {
				t.Fatalf("Enrich: %v", err)
			}
			if string(report.Stage) != tc.wantStage {
				t.Errorf("stage: got %q, want %q", report.Stage, tc.wantStage)
			}
			if !eq(got.ExpenseType, tc.wantType) {
				t.Errorf("expense type: got %v, want %v", deref(got.ExpenseType), deref(tc.wantType))
			}
			if !eq(got.Amount, tc.wantAmount) {
				t.Errorf("amount: got %v, want %v", deref(got.Amount), deref(tc.wantAmount))
			}
			if !eq(got.Currency, tc.wantCurrency) {
				t.Errorf("currency: got %v, want %v", deref(got.Currency), deref(tc.wantCurrency))
			}
		})
	}
}

func TestEnrich_HalfPair(t *testing.T) {
	n := event("com.bank", "Uber", "Paid €9.00")
	n.Amount = ptr(9.0)

	_, _, err := Enrich(n)
	if !errors.Is(err, api.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestEnrich_DoesNotMutateInput(t *testing.T) {
	n := event("com.bank", "Uber", "Paid €9.00")
	if _, _, err := Enrich(n); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if n.ExpenseType != nil || n.Amount != nil || n.Currency != nil {
		t.Error("input was modified")
	}
}

func TestEnrich_Idempotent(t *testing.T) {
	first, _, err := Enrich(event("com.bank", "Repsol", "Paid €40.00 ⛽"))
	if err != nil {
		t.Fatalf("first Enrich: %v", err)
	}
	second, _, err := Enrich(first)
	if err != nil {
		t.Fatalf("second Enrich: %v", err)
	}
	if *second.ExpenseType != *first.ExpenseType || *second.Amount != *first.Amount {
		t.Errorf("re-enrichment changed the event: %v/%v vs %v/%v",
			*first.ExpenseType, *first.Amount, *second.ExpenseType, *second.Amount)
	}
}

func eq[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func deref[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
