// Package postgres stores notifications in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ArionMiles/notispend/pkg/api"
	"github.com/ArionMiles/notispend/pkg/store"
)

// uniqueViolation is the SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// Config holds the PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxConns is the maximum number of connections in the pool.
	MaxConns int
}

// ConnString renders cfg as a libpq keyword/value string, applying defaults.
func (c Config) ConnString() string {
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Store is a pgx pool backed api.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ api.Store = (*Store)(nil)

// New connects using cfg and applies migrations.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	return Open(ctx, cfg.ConnString(), cfg.MaxConns, logger)
}

// Open connects to connString, checks the connection and applies migrations.
func Open(ctx context.Context, connString string, maxConns int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConns <= 0 {
		maxConns = 10
	}

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MinConns = min(2, int32(maxConns))
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", poolConfig.ConnConfig.Database,
	)

	logger.Info("running database migrations")
	if err := Migrate(connString); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool, logger: logger}, nil
}

const insertSQL = `
	INSERT INTO notifications (
		id, package_name, key, tag, post_time, is_clearable, category,
		title, text, icon, messages, media_info, latitude, longitude,
		expense_type, amount, currency
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	RETURNING serial_id, created_at
`

// Insert writes n in its own transaction.
func (s *Store) Insert(ctx context.Context, n api.Notification) (api.StoredNotification, error) {
	messages, media, err := store.EncodeExtras(n)
	if err != nil {
		return api.StoredNotification{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return api.StoredNotification{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stored := api.StoredNotification{Notification: n}
	err = tx.QueryRow(ctx, insertSQL,
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
		jsonArg(messages),
		jsonArg(media),
		n.Latitude,
		n.Longitude,
		n.ExpenseType,
		n.Amount,
		n.Currency,
	).Scan(&stored.SerialID, &stored.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return api.StoredNotification{}, fmt.Errorf("inserting notification: %w: %s", api.ErrConflict, pgErr.Detail)
		}
		return api.StoredNotification{}, fmt.Errorf("inserting notification: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return api.StoredNotification{}, fmt.Errorf("committing transaction: %w", err)
	}

	return stored, nil
}

// jsonArg passes encoded JSON as text so pgx sends it verbatim to a JSONB column.
func jsonArg(b []byte) any {
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
	LIMIT $1 OFFSET $2
`

func scanRow(row pgx.CollectableRow) (api.StoredNotification, error) {
	var (
		s               api.StoredNotification
		messages, media []byte
	)
	err := row.Scan(
		&s.SerialID, &s.ID, &s.PackageName, &s.Key, &s.Tag, &s.PostTime, &s.IsClearable, &s.Category,
		&s.Title, &s.Text, &s.Icon, &messages, &media, &s.Latitude, &s.Longitude,
		&s.ExpenseType, &s.Amount, &s.Currency, &s.CreatedAt,
	)
	if err != nil {
		return api.StoredNotification{}, fmt.Errorf("scanning notification: %w", err)
	}
	if err := store.DecodeExtras(&s.Notification, messages, media); err != nil {
		return api.StoredNotification{}, fmt.Errorf("row %d: %w", s.SerialID, err)
	}
	return s, nil
}

// List returns one page ordered by post time, newest first.
func (s *Store) List(ctx context.Context, page api.Page) ([]api.StoredNotification, error) {
	rows, err := s.pool.Query(ctx, selectSQL, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanRow)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAmounts locks one page, applies fn to every row and commits the
// resulting updates together.
func (s *Store) UpdateAmounts(ctx context.Context, page api.Page, fn api.RecomputeFunc) ([]api.AmountUpdate, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, selectSQL+" FOR UPDATE", page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	current, err := pgx.CollectRows(rows, scanRow)
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

		if _, err := tx.Exec(ctx,
			`UPDATE notifications SET amount = $1, currency = $2 WHERE serial_id = $3`,
			u.Amount, u.Currency, u.SerialID,
		); err != nil {
			return nil, fmt.Errorf("updating notification %d: %w", u.SerialID, err)
		}
		updates = append(updates, *u)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("updated notification amounts", "count", len(updates))
	return updates, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
}
