// Package pipeline filters payment notifications, enriches them with an
// expense type and amount, and hands them to a store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ArionMiles/notispend/pkg/amount"
	"github.com/ArionMiles/notispend/pkg/api"
	"github.com/ArionMiles/notispend/pkg/classifier"
	"github.com/ArionMiles/notispend/pkg/metrics"
)

// Status is the terminal state of a successfully handled notification.
// Persistence failures are returned as errors instead.
type Status string

const (
	StatusFiltered  Status = "filtered"
	StatusPersisted Status = "persisted"
)

// Reason explains why a notification was filtered.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNotPaid       Reason = "not-paid"
	ReasonWalletPackage Reason = "wallet-package"
)

// Decision is the result of the inclusion filter.
type Decision struct {
	Accepted bool
	Reason   Reason
}

// Filter accepts notifications whose text mentions "paid", except those
// posted by a wallet app, which echo payments already seen from the bank.
func Filter(n api.Notification) Decision {
	if !strings.Contains(strings.ToLower(n.TextString()), "paid") {
		return Decision{Reason: ReasonNotPaid}
	}
	if strings.Contains(strings.ToLower(n.PackageName), "wallet") {
		return Decision{Reason: ReasonWalletPackage}
	}
	return Decision{Accepted: true}
}

// Outcome describes a handled notification.
type Outcome struct {
	Status Status
	Reason Reason
	// Notification is the input, enriched when it was accepted.
	Notification api.Notification
	// Stored is set when Status is StatusPersisted.
	Stored *api.StoredNotification
}

// Pipeline runs notifications through filter, enrichment and storage.
type Pipeline struct {
	store   api.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a pipeline writing to store. m may be nil.
func New(store api.Store, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// Ingest filters, enriches and stores one notification.
// Errors wrap api.ErrValidation, amount.ErrAmbiguous, api.ErrConflict, or a store failure.
func (p *Pipeline) Ingest(ctx context.Context, n api.Notification) (Outcome, error) {
	logger := p.logger.With("package", n.PackageName, "title", n.TitleString())
	logger.Info("received notification")

	decision := Filter(n)
	if !decision.Accepted {
		switch decision.Reason {
		case ReasonWalletPackage:
			p.metrics.Outcome(metrics.OutcomeFilteredWallet)
		default:
			p.metrics.Outcome(metrics.OutcomeFilteredNotPaid)
		}
		logger.Warn("FILTERED: notification blocked", "reason", decision.Reason)
		return Outcome{Status: StatusFiltered, Reason: decision.Reason, Notification: n}, nil
	}

	enriched, report, err := Enrich(n)
	if err != nil {
		p.metrics.Outcome(metrics.OutcomeInvalid)
		if errors.Is(err, amount.ErrAmbiguous) {
			p.metrics.Extraction(metrics.AmountAmbiguous)
		}
		logger.Error("failed to enrich notification", "error", err)
		return Outcome{}, fmt.Errorf("enriching notification: %w", err)
	}
	p.record(logger, report)

	stored, err := p.store.Insert(ctx, enriched)
	if err != nil {
		if errors.Is(err, api.ErrConflict) {
			p.metrics.Outcome(metrics.OutcomeConflict)
			logger.Warn("duplicate notification", "key", n.Key, "post_time", n.PostTime)
		} else {
			p.metrics.Outcome(metrics.OutcomeFailed)
			logger.Error("failed to insert notification", "error", err)
		}
		return Outcome{}, fmt.Errorf("storing notification: %w", err)
	}

	p.metrics.Outcome(metrics.OutcomePersisted)
	logger.Info("INSERTED: notification saved", "serial_id", stored.SerialID)

	return Outcome{
		Status:       StatusPersisted,
		Notification: enriched,
		Stored:       &stored,
	}, nil
}

func (p *Pipeline) record(logger *slog.Logger, r Report) {
	switch r.Stage {
	case StageCaller:
		label := r.ExpenseType
		if !classifier.Category(label).Valid() {
			label = metrics.CategoryOther
		}
		p.metrics.Classification(string(StageCaller), label)
	case classifier.StageEmoji, classifier.StageKeyword:
		p.metrics.Classification(string(r.Stage), r.ExpenseType)
		logger.Info("AUTO-DETECTED expense type", "expense_type", r.ExpenseType, "stage", r.Stage)
	default:
		p.metrics.Classification(string(classifier.StageNone), classifier.Unknown.String())
		logger.Warn("could not detect expense type")
	}
	p.metrics.Extraction(r.Extraction)
}

// List returns one page of stored notifications.
func (p *Pipeline) List(ctx context.Context, page api.Page) ([]api.StoredNotification, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}

	rows, err := p.store.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return rows, nil
}

// Ping checks the store.
func (p *Pipeline) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}
