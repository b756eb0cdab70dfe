package pipeline

import (
	"context"
	"fmt"

	"github.com/ArionMiles/notispend/pkg/amount"
	"github.com/ArionMiles/notispend/pkg/api"
)

// Backfill re-runs amount extraction over one page of stored rows and
// rewrites the rows whose recomputed amount is greater than zero.
// An unparseable amount aborts the page; nothing is written.
func (p *Pipeline) Backfill(ctx context.Context, page api.Page) ([]api.AmountUpdate, error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}

	p.logger.Info("starting amount backfill", "limit", page.Limit, "offset", page.Offset)

	updates, err := p.store.UpdateAmounts(ctx, page, recompute)
	if err != nil {
		p.logger.Error("amount backfill failed", "error", err)
		return nil, fmt.Errorf("backfilling amounts: %w", err)
	}

	p.metrics.Backfilled(len(updates))
	p.logger.Info("amount backfill complete", "updated", len(updates))
	return updates, nil
}

func recompute(row api.StoredNotification) (*api.AmountUpdate, error) {
	n := minimalNotification(row)

	res, err := amount.Extract(n.TextString())
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", row.SerialID, err)
	}
	if res == nil || res.Amount <= 0 {
		return nil, nil
	}

	return &api.AmountUpdate{
		SerialID: row.SerialID,
		Amount:   res.Amount,
		Currency: res.Currency,
	}, nil
}

// minimalNotification rebuilds the event fields a stored row carries
// into the pipeline; enrichment and media fields are dropped.
func minimalNotification(row api.StoredNotification) api.Notification {
	text := row.TextString()
	return api.Notification{
		PackageName: row.PackageName,
		ID:          row.ID,
		Key:         row.Key,
		Tag:         row.Tag,
		PostTime:    row.PostTime,
		IsClearable: row.IsClearable,
		Category:    row.Category,
		Title:       row.Title,
		Text:        &text,
	}
}
