// Package memory provides an in-process notification store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ArionMiles/notispend/pkg/api"
)

type naturalKey struct {
	key      string
	postTime int64
}

// Store keeps notifications in memory. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	rows   []api.StoredNotification
	keys   map[naturalKey]struct{}
	nextID int64
	now    func() time.Time
}

var _ api.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		keys:   make(map[naturalKey]struct{}),
		nextID: 1,
		now:    time.Now,
	}
}

// Insert stores n and assigns it the next serial id.
func (s *Store) Insert(_ context.Context, n api.Notification) (api.StoredNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := naturalKey{key: n.Key, postTime: n.PostTime}
	if _, ok := s.keys[k]; ok {
		return api.StoredNotification{}, fmt.Errorf("key %q at %d: %w", n.Key, n.PostTime, api.ErrConflict)
	}

	row := api.StoredNotification{
		SerialID:     s.nextID,
		CreatedAt:    s.now().UTC(),
		Notification: clone(n),
	}
	s.nextID++
	s.keys[k] = struct{}{}
	s.rows = append(s.rows, row)

	row.Notification = clone(n)
	return row, nil
}

// List returns rows ordered by post time, newest first.
func (s *Store) List(_ context.Context, page api.Page) ([]api.StoredNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.page(page)
	for i := range rows {
		rows[i].Notification = clone(rows[i].Notification)
	}
	return rows, nil
}

// page must be called with mu held.
func (s *Store) page(page api.Page) []api.StoredNotification {
	ordered := make([]api.StoredNotification, len(s.rows))
	copy(ordered, s.rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].PostTime != ordered[j].PostTime {
			return ordered[i].PostTime > ordered[j].PostTime
		}
		return ordered[i].SerialID > ordered[j].SerialID
	})

	if page.Offset >= len(ordered) {
		return []api.StoredNotification{}
	}
	end := page.Offset + page.Limit
	if end > len(ordered) {
		end = len(ordered)
	}
	return ordered[page.Offset:end]
}

// UpdateAmounts applies fn to one page of rows. Rows are only rewritten
// once fn has succeeded for the whole page.
func (s *Store) UpdateAmounts(_ context.Context, page api.Page, fn api.RecomputeFunc) ([]api.AmountUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updates []api.AmountUpdate
	for _, row := range s.page(page) {
		row.Notification = clone(row.Notification)
		u, err := fn(row)
		if err != nil {
			return nil, err
		}
		if u != nil {
			updates = append(updates, *u)
		}
	}

	index := make(map[int64]int, len(s.rows))
	for i, row := range s.rows {
		index[row.SerialID] = i
	}
	for _, u := range updates {
		i, ok := index[u.SerialID]
		if !ok {
			continue
		}
		amount, currency := u.Amount, u.Currency
		s.rows[i].Amount = &amount
		s.rows[i].Currency = &currency
	}

	return updates, nil
}

// clone deep-copies the pointer and slice fields of n.
func clone(n api.Notification) api.Notification {
	out := n
	out.Tag = clonePtr(n.Tag)
	out.Category = clonePtr(n.Category)
	out.Title = clonePtr(n.Title)
	out.Text = clonePtr(n.Text)
	out.Latitude = clonePtr(n.Latitude)
	out.Longitude = clonePtr(n.Longitude)
	out.ExpenseType = clonePtr(n.ExpenseType)
	out.Amount = clonePtr(n.Amount)
	out.Currency = clonePtr(n.Currency)
	if n.Icon != nil {
		out.Icon = append([]byte(nil), n.Icon...)
	}
	if n.Messages != nil {
		out.Messages = make([]api.MessageEntry, len(n.Messages))
		for i, m := range n.Messages {
			out.Messages[i] = api.MessageEntry{
				Sender:    clonePtr(m.Sender),
				Text:      clonePtr(m.Text),
				Timestamp: clonePtr(m.Timestamp),
			}
		}
	}
	if n.MediaInfo != nil {
		out.MediaInfo = &api.MediaReference{
			Type:      clonePtr(n.MediaInfo.Type),
			URI:       clonePtr(n.MediaInfo.URI),
			Thumbnail: clonePtr(n.MediaInfo.Thumbnail),
		}
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() {}
