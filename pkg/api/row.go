package api

import (
	"encoding/json"
	"time"
)

// storedRow is the listing shape of a stored notification. The store serial
// is exposed as "id" and the device id moves to "notificationId".
type storedRow struct {
	SerialID       int64           `json:"id"`
	NotificationID int64           `json:"notificationId"`
	PackageName    string          `json:"packageName"`
	Key            string          `json:"key"`
	Tag            *string         `json:"tag"`
	PostTime       int64           `json:"postTime"`
	IsClearable    bool            `json:"isClearable"`
	Category       *string         `json:"category"`
	Title          *string         `json:"title"`
	Text           *string         `json:"text"`
	Messages       []MessageEntry  `json:"messages"`
	MediaInfo      *MediaReference `json:"mediaInfo"`
	Latitude       *float64        `json:"latitude"`
	Longitude      *float64        `json:"longitude"`
	CreatedAt      time.Time       `json:"createdAt"`
	ExpenseType    *string         `json:"expenseType"`
	Amount         *float64        `json:"amount"`
	Currency       *string         `json:"currency"`
}

// MarshalJSON encodes s in the listing shape. Icons are not listed.
func (s StoredNotification) MarshalJSON() ([]byte, error) {
	return json.Marshal(storedRow{
		SerialID:       s.SerialID,
		NotificationID: s.ID,
		PackageName:    s.PackageName,
		Key:            s.Key,
		Tag:            s.Tag,
		PostTime:       s.PostTime,
		IsClearable:    s.IsClearable,
		Category:       s.Category,
		Title:          s.Title,
		Text:           s.Text,
		Messages:       s.Messages,
		MediaInfo:      s.MediaInfo,
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		CreatedAt:      s.CreatedAt,
		ExpenseType:    s.ExpenseType,
		Amount:         s.Amount,
		Currency:       s.Currency,
	})
}
