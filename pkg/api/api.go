// Package api defines the core data structures and interfaces for notispend.
package api

import (
	"context"
	"time"
)

// MessageEntry is a single message line attached to a notification (chat style notifications).
type MessageEntry struct {
	Sender    *string `json:"sender"`
	Text      *string `json:"text"`
	Timestamp *int64  `json:"timestamp"`
}

// MediaReference points at media shown by the notification.
type MediaReference struct {
	Type      *string `json:"type"`
	URI       *string `json:"uri"`
	Thumbnail *string `json:"thumbnail"`
}

// Notification is a notification event as posted by the device, optionally
// enriched with an expense type, amount and currency.
type Notification struct {
	PackageName string `json:"packageName"`
	// ID is the Android notification id, not unique across packages.
	ID          int64           `json:"id"`
	Key         string          `json:"key"`
	Tag         *string         `json:"tag"`
	PostTime    int64           `json:"postTime"`
	IsClearable bool            `json:"isClearable"`
	Category    *string         `json:"category"`
	Title       *string         `json:"title"`
	Text        *string         `json:"text"`
	Icon        []byte          `json:"icon,omitempty"`
	Messages    []MessageEntry  `json:"messages"`
	MediaInfo   *MediaReference `json:"mediaInfo"`
	Latitude    *float64        `json:"latitude"`
	Longitude   *float64        `json:"longitude"`

	// Enrichment fields. Amount and Currency are either both set or both nil.
	ExpenseType *string  `json:"expenseType"`
	Amount      *float64 `json:"amount"`
	Currency    *string  `json:"currency"`
}

// TitleString returns the title, or "" when absent.
func (n Notification) TitleString() string {
	if n.Title == nil {
		return ""
	}
	return *n.Title
}

// TextString returns the free text, or "" when absent.
func (n Notification) TextString() string {
	if n.Text == nil {
		return ""
	}
	return *n.Text
}

// StoredNotification is a notification row as persisted by a Store.
type StoredNotification struct {
	// SerialID is the store generated row identifier.
	SerialID  int64     `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Notification
}

// AmountUpdate reports a row whose amount was recomputed during a backfill.
type AmountUpdate struct {
	SerialID int64   `json:"serial_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Page bounds a listing or backfill query.
type Page struct {
	Limit  int
	Offset int
}

// Pagination defaults and bounds.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Validate checks the page bounds.
func (p Page) Validate() error {
	if p.Limit < 1 || p.Limit > MaxLimit {
		return &ValidationError{Field: "limit", Reason: "must be between 1 and 1000"}
	}
	if p.Offset < 0 {
		return &ValidationError{Field: "offset", Reason: "must not be negative"}
	}
	return nil
}

// RecomputeFunc derives an amount update for a stored row.
// A nil update with a nil error leaves the row untouched.
type RecomputeFunc func(row StoredNotification) (*AmountUpdate, error)

// Store persists enriched notifications.
// Implementations must release every connection they acquire before returning.
type Store interface {
	// Insert writes one notification. A duplicate natural key returns an error wrapping ErrConflict.
	Insert(ctx context.Context, n Notification) (StoredNotification, error)
	// List returns stored notifications ordered by post time, newest first.
	List(ctx context.Context, page Page) ([]StoredNotification, error)
	// UpdateAmounts reads one page and applies fn to each row inside a single transaction.
	// Any error from fn or the store rolls back the whole page.
	UpdateAmounts(ctx context.Context, page Page, fn RecomputeFunc) ([]AmountUpdate, error)
	// Ping checks store connectivity.
	Ping(ctx context.Context) error
	Close()
}
