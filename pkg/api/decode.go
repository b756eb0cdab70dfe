package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// wireNotification mirrors Notification with pointer fields so that missing
// required fields can be told apart from zero values.
type wireNotification struct {
	PackageName *string         `json:"packageName"`
	ID          *int64          `json:"id"`
	Key         *string         `json:"key"`
	Tag         *string         `json:"tag"`
	PostTime    *int64          `json:"postTime"`
	IsClearable *bool           `json:"isClearable"`
	Category    *string         `json:"category"`
	Title       *string         `json:"title"`
	Text        *string         `json:"text"`
	Icon        []byte          `json:"icon"`
	Messages    []MessageEntry  `json:"messages"`
	MediaInfo   *MediaReference `json:"mediaInfo"`
	Latitude    *float64        `json:"latitude"`
	Longitude   *float64        `json:"longitude"`
	ExpenseType *string         `json:"expenseType"`
	Amount      *float64        `json:"amount"`
	Currency    *string         `json:"currency"`
}

// DecodeNotification reads one JSON notification from r and validates it.
// Every failure is a *ValidationError.
func DecodeNotification(r io.Reader) (Notification, error) {
	var w wireNotification
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Notification{}, &ValidationError{
				Field:  typeErr.Field,
				Reason: fmt.Sprintf("expected %s", typeErr.Type),
			}
		}
		return Notification{}, &ValidationError{Reason: fmt.Sprintf("decoding body: %v", err)}
	}

	switch {
	case w.PackageName == nil:
		return Notification{}, &ValidationError{Field: "packageName", Reason: "field required"}
	case w.ID == nil:
		return Notification{}, &ValidationError{Field: "id", Reason: "field required"}
	case w.Key == nil:
		return Notification{}, &ValidationError{Field: "key", Reason: "field required"}
	case w.PostTime == nil:
		return Notification{}, &ValidationError{Field: "postTime", Reason: "field required"}
	}

	n := Notification{
		PackageName: *w.PackageName,
		ID:          *w.ID,
		Key:         *w.Key,
		Tag:         w.Tag,
		PostTime:    *w.PostTime,
		IsClearable: true,
		Category:    w.Category,
		Title:       w.Title,
		Text:        w.Text,
		Icon:        w.Icon,
		Messages:    w.Messages,
		MediaInfo:   w.MediaInfo,
		Latitude:    w.Latitude,
		Longitude:   w.Longitude,
		ExpenseType: w.ExpenseType,
		Amount:      w.Amount,
		Currency:    w.Currency,
	}
	if w.IsClearable != nil {
		n.IsClearable = *w.IsClearable
	}

	if err := n.Validate(); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Validate checks invariants that hold for any notification entering the pipeline.
func (n Notification) Validate() error {
	if (n.Amount == nil) != (n.Currency == nil) {
		return &ValidationError{Field: "amount", Reason: "amount and currency must be supplied together"}
	}
	return nil
}
