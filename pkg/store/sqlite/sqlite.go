// Package sqlite stores notifications in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ArionMiles/notispend/pkg/api"
	"github.com/ArionMiles/notispend/pkg/store"
)

// Store is a database/sql backed api.Store on modernc.org/sqlite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

var _ api.Store = (*Store)(nil)

// Open opens or creates the database at path and applies migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	if err := Migrate(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection also serialises transactions.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("opened SQLite database", "path", path)
	return &Store{db: db, path: path, logger: logger, now: time.Now}, nil
}

const insertSQL = `
	INSERT INTO notifications (
		id, package_name, key, tag, post_time, is_clearable, category,
		title, text, icon, messages, media_info, latitude, longitude,
		expense_type, amount, currency, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING serial_id
`

// Insert writes n in its own transaction.
func (s *Store) Insert(ctx context.Context, n api.Notification) (api.StoredNotification, error) {
	messages, media, err := store.EncodeExtras(n)
	if err != nil {
		return api.StoredNotification{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return api.StoredNotification{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stored := api.StoredNotification{
		Notification: n,
		CreatedAt:    s.now().UTC(),
	}
	err = tx.QueryRowContext(ctx, insertSQL,
		n.ID,
		n.PackageName,
		n.Key,
		n.Tag,
		n.PostTime,
		n.IsClearable,
		n.Category,
		n.Title,
		n.Text,
		store.Nullable(n.Icon),
		textArg(messages),
		textArg(media),
		n.Latitude,
		n.Longitude,
		n.ExpenseType,
		n.Amount,
		n.Currency,
		stored.CreatedAt.Format(time.RFC3339Nano),
	).Scan(&stored.SerialID)
	if err != nil {
		var sqlErr *sqlite.Error
		if errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return api.StoredNotification{}, fmt.Errorf("inserting notification: %w: %s", api.ErrConflict, sqlErr.Error())
		}
		return api.StoredNotification{}, fmt.Errorf("inserting notification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return api.StoredNotification{}, fmt.Errorf("committing transaction: %w", err)
	}

	return stored, nil
}

func textArg(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

const selectSQL = `
	SELECT serial_id, id, package_name, key, tag, post_time, is_clearable, category,
	       title, text, icon, messages, media_info, latitude, longitude,
	       expense_type, amount, currency, created_at
	FROM notifications
	ORDER BY post_time DESC, serial_id DESC
	LIMIT ? OFFSET ?
`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryPage(ctx context.Context, q querier, page api.Page) ([]api.StoredNotification, error) {
	rows, err := q.QueryContext(ctx, selectSQL, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var out []api.StoredNotification
	for rows.Next() {
		var (
			n               api.StoredNotification
			messages, media []byte
			createdAt       string
		)
		if err := rows.Scan(
			&n.SerialID, &n.ID, &n.PackageName, &n.Key, &n.Tag, &n.PostTime, &n.IsClearable, &n.Category,
			&n.Title, &n.Text, &n.Icon, &messages, &media, &n.Latitude, &n.Longitude,
			&n.ExpenseType, &n.Amount, &n.Currency, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		if err := store.DecodeExtras(&n.Notification, messages, media); err != nil {
			return nil, fmt.Errorf("row %d: %w", n.SerialID, err)
		}
		if n.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("row %d: parsing created_at: %w", n.SerialID, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return out, nil
}

// List returns one page ordered by post time, newest first.
func (s *Store) List(ctx context.Context, page api.Page) ([]api.StoredNotification, error) {
	return queryPage(ctx, s.db, page)
}

// UpdateAmounts applies fn to one page and commits the updates together.
func (s *Store) UpdateAmounts(ctx context.Context, page api.Page, fn api.RecomputeFunc) ([]api.AmountUpdate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := queryPage(ctx, tx, page)
	if err != nil {
		return nil, err
	}

	var updates []api.AmountUpdate
	for _, row := range current {
		u, err := fn(row)
		if err != nil {
			return nil, err
		}
		if u == nil {
			continue
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE notifications SET amount = ?, currency = ? WHERE serial_id = ?`,
			u.Amount, u.Currency, u.SerialID,
		); err != nil {
			return nil, fmt.Errorf("updating notification %d: %w", u.SerialID, err)
		}
		updates = append(updates, *u)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("updated notification amounts", "count", len(updates))
	return updates, nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing SQLite database", "error", err)
		return
	}
	s.logger.Info("closed SQLite database", "path", s.path)
}
