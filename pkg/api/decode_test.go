package api

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeNotification(t *testing.T) {
	body := `{
		"packageName": "com.bank.app",
		"id": 1,
		"key": "key-1",
		"postTime": 1700000000000,
		"title": "Payment confirmed",
		"text": "Paid €25.00 at Mercadona 🛒",
		"messages": [{"sender": "bank", "text": "hi", "timestamp": 5}],
		"mediaInfo": {"type": "image", "uri": "content://x"},
		"latitude": 41.3851,
		"longitude": 2.1734
	}`

	n, err := DecodeNotification(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n.PackageName != "com.bank.app" {
		t.Errorf("packageName: got %q, want %q", n.PackageName, "com.bank.app")
	}
	if n.ID != 1 || n.Key != "key-1" || n.PostTime != 1700000000000 {
		t.Errorf("identity fields: got id=%d key=%q postTime=%d", n.ID, n.Key, n.PostTime)
	}
	if !n.IsClearable {
		t.Error("isClearable: expected default true")
	}
	if n.TextString() != "Paid €25.00 at Mercadona 🛒" {
		t.Errorf("text: got %q", n.TextString())
	}
	if len(n.Messages) != 1 || *n.Messages[0].Sender != "bank" {
		t.Errorf("messages: got %+v", n.Messages)
	}
	if n.MediaInfo == nil || *n.MediaInfo.URI != "content://x" || n.MediaInfo.Thumbnail != nil {
		t.Errorf("mediaInfo: got %+v", n.MediaInfo)
	}
	if n.ExpenseType != nil || n.Amount != nil || n.Currency != nil {
		t.Error("enrichment fields should default to nil")
	}
}

func TestDecodeNotification_Optional(t *testing.T) {
	n, err := DecodeNotification(strings.NewReader(`{"packageName":"com.test","id":42,"key":"k","postTime":1700000000,"isClearable":false}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.IsClearable {
		t.Error("isClearable: expected explicit false to be kept")
	}
	if n.Title != nil || n.Text != nil || n.Tag != nil {
		t.Error("optional strings should be nil")
	}
	if n.TitleString() != "" || n.TextString() != "" {
		t.Error("string accessors should return empty for nil")
	}
}

func TestDecodeNotification_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing everything", `{"packageName":"com.test"}`, "id"},
		{"missing package", `{"id":1,"key":"k","postTime":1}`, "packageName"},
		{"missing key", `{"packageName":"p","id":1,"postTime":1}`, "key"},
		{"missing post time", `{"packageName":"p","id":1,"key":"k"}`, "postTime"},
		{"wrong type", `{"packageName":"p","id":"one","key":"k","postTime":1}`, "id"},
		{"amount without currency", `{"packageName":"p","id":1,"key":"k","postTime":1,"amount":3.5}`, "amount"},
		{"currency without amount", `{"packageName":"p","id":1,"key":"k","postTime":1,"currency":"€"}`, "amount"},
		{"not json", `not json`, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeNotification(strings.NewReader(tc.body))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if vErr.Field != tc.wantField {
				t.Errorf("field: got %q, want %q", vErr.Field, tc.wantField)
			}
		})
	}
}

func TestPageValidate(t *testing.T) {
	tests := []struct {
		page    Page
		wantErr bool
	}{
		{Page{Limit: 100, Offset: 0}, false},
		{Page{Limit: 1, Offset: 5}, false},
		{Page{Limit: MaxLimit}, false},
		{Page{Limit: 0}, true},
		{Page{Limit: MaxLimit + 1}, true},
		{Page{Limit: 10, Offset: -1}, true},
	}

	for _, tc := range tests {
		err := tc.page.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("Validate(%+v): got err=%v, wantErr=%v", tc.page, err, tc.wantErr)
		}
	}
}
