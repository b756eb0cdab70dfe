// Package storetest runs the api.Store contract against an implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/ArionMiles/notispend/pkg/api"
)

// Factory returns an empty store. The store is closed by the caller.
type Factory func(t *testing.T) api.Store

// Run exercises every Store operation on fresh stores from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("InsertRoundTrip", func(t *testing.T) { testInsertRoundTrip(t, newStore) })
	t.Run("InsertConflict", func(t *testing.T) { testInsertConflict(t, newStore) })
	t.Run("ListOrderAndPaging", func(t *testing.T) { testList(t, newStore) })
	t.Run("UpdateAmounts", func(t *testing.T) { testUpdateAmounts(t, newStore) })
	t.Run("UpdateAmountsRollback", func(t *testing.T) { testUpdateAmountsRollback(t, newStore) })
	t.Run("CallerMutationIsolated", func(t *testing.T) { testIsolation(t, newStore) })
	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		if err := s.Ping(context.Background()); err != nil {
			t.Errorf("Ping: %v", err)
		}
	})
}

func ptr[T any](v T) *T { return &v }

// Notification returns a minimal valid notification posted at postTime.
func Notification(key string, postTime int64) api.Notification {
	return api.Notification{
		PackageName: "com.bank.app",
		ID:          postTime % 1000,
		Key:         key,
		PostTime:    postTime,
		IsClearable: true,
		Title:       ptr("Mercadona"),
		Text:        ptr("Paid €12.50 at Mercadona"),
	}
}

func full() api.Notification {
	n := Notification("0|com.bank.app|7|null|10123", 1700000000000)
	n.Tag = ptr("payments")
	n.Category = ptr("msg")
	n.Icon = []byte{0x89, 'P', 'N', 'G'}
	n.Messages = []api.MessageEntry{
		{Sender: ptr("Bank"), Text: ptr("Paid €12.50"), Timestamp: ptr(int64(1700000000001))},
		{Text: ptr("Thanks")},
	}
	n.MediaInfo = &api.MediaReference{Type: ptr("image"), URI: ptr("content://media/1")}
	n.Latitude = ptr(41.3874)
	n.Longitude = ptr(2.1686)
	n.ExpenseType = ptr("grocery")
	n.Amount = ptr(12.50)
	n.Currency = ptr("€")
	n.IsClearable = false
	return n
}

func testInsertRoundTrip(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	defer s.Close()

	inputs := []api.Notification{full(), Notification("bare", 1700000000500)}
	inputs[1].Title = nil

	var lastID int64
	for _, in := range inputs {
		stored, err := s.Insert(ctx, in)
		if err != nil {
			t.Fatalf("Insert(%s): %v", in.Key, err)
		}
		if stored.SerialID <= lastID {
			t.Errorf("serial id %d not greater than %d", stored.SerialID, lastID)
		}
		lastID = stored.SerialID
		if stored.CreatedAt.IsZero() {
			t.Errorf("%s: created_at not set", in.Key)
		}
		if stored.PackageName != in.PackageName {
			t.Errorf("package: got %q, want %q", stored.PackageName, in.PackageName)
		}
	}

	rows, err := s.List(ctx, api.Page{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("List: got %d rows, want 2", len(rows))
	}

	// Newest first.
	want := []api.Notification{inputs[1], inputs[0]}
	for i, row := range rows {
		if !reflect.DeepEqual(row.Notification, want[i]) {
			t.Errorf("row %d:\n got %+v\nwant %+v", i, row.Notification, want[i])
		}
	}
}

func testInsertConflict(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	defer s.Close()

	n := Notification("dup", 1700000000000)
	if _, err := s.Insert(ctx, n); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	_, err := s.Insert(ctx, n)
	if !errors.Is(err, api.ErrConflict) {
		t.Fatalf("duplicate insert: got %v, want ErrConflict", err)
	}

	// Same key, different post time is a new event.
	if _, err := s.Insert(ctx, Notification("dup", 1700000000001)); err != nil {
		t.Errorf("insert with new post time: %v", err)
	}

	rows, err := s.List(ctx, api.Page{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows after conflict, want 2", len(rows))
	}
}

func seed(t *testing.T, s api.Store, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		n := Notification(fmt.Sprintf("k%d", i), int64(1000+i))
		if _, err := s.Insert(context.Background(), n); err != nil {
			t.Fatalf("seeding row %d: %v", i, err)
		}
	}
}

func testList(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	defer s.Close()
	seed(t, s, 5)

	tests := []struct {
		page api.Page
		want []int64
	}{
		{api.Page{Limit: 10}, []int64{1004, 1003, 1002, 1001, 1000}},
		{api.Page{Limit: 2}, []int64{1004, 1003}},
		{api.Page{Limit: 2, Offset: 3}, []int64{1001, 1000}},
		{api.Page{Limit: 2, Offset: 5}, nil},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("limit=%d,offset=%d", tc.page.Limit, tc.page.Offset), func(t *testing.T) {
			rows, err := s.List(ctx, tc.page)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var got []int64
			for _, r := range rows {
				got = append(got, r.PostTime)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("post times: got %v, want %v", got, tc.want)
			}
		})
	}
}

func testUpdateAmounts(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	defer s.Close()
	seed(t, s, 4)

	seen := 0
	updates, err := s.UpdateAmounts(ctx, api.Page{Limit: 3}, func(row api.StoredNotification) (*api.AmountUpdate, error) {
		seen++
		if row.PostTime%2 == 0 {
			return nil, nil
		}
		return &api.AmountUpdate{SerialID: row.SerialID, Amount: 9.99, Currency: "$"}, nil
	})
	if err != nil {
		t.Fatalf("UpdateAmounts: %v", err)
	}
	if seen != 3 {
		t.Errorf("fn called %d times, want 3", seen)
	}
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(updates))
	}

	rows, err := s.List(ctx, api.Page{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, r := range rows {
		updated := r.PostTime == 1003 || r.PostTime == 1001
		switch {
		case updated && (r.Amount == nil || *r.Amount != 9.99 || r.Currency == nil || *r.Currency != "$"):
			t.Errorf("row %d: amount not rewritten: %v %v", r.PostTime, r.Amount, r.Currency)
		case !updated && r.Amount != nil:
			t.Errorf("row %d: unexpectedly rewritten to %v", r.PostTime, *r.Amount)
		}
	}
}

func testUpdateAmountsRollback(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	defer s.Close()
	seed(t, s, 3)

	boom := errors.New("boom")
	calls := 0
	_, err := s.UpdateAmounts(ctx, api.Page{Limit: 10}, func(row api.StoredNotification) (*api.AmountUpdate, error) {
		calls++
		if calls == 3 {
			return nil, boom
		}
		return &api.AmountUpdate{SerialID: row.SerialID, Amount: 1, Currency: "€"}, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}

	rows, err := s.List(ctx, api.Page{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, r := range rows {
		if r.Amount != nil {
			t.Errorf("row %d: amount %v written despite rollback", r.PostTime, *r.Amount)
		}
	}
}

func testIsolation(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	defer s.Close()

	in := full()
	stored, err := s.Insert(ctx, in)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	*in.Amount = 99
	*in.Text = "changed"
	in.Icon[0] = 0
	*in.Messages[0].Sender = "changed"
	*in.MediaInfo.URI = "changed"
	*stored.Currency = "$"

	rows, err := s.List(ctx, api.Page{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows: got %d, want 1", len(rows))
	}
	*rows[0].Title = "changed"
	rows[0].Messages[1].Text = nil

	again, err := s.List(ctx, api.Page{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(again[0].Notification, full()) {
		t.Errorf("stored row changed through caller pointers:\ngot  %+v\nwant %+v", again[0].Notification, full())
	}
}
