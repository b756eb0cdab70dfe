// Package export writes stored notifications as CSV or JSON.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ArionMiles/notispend/pkg/api"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q: want csv or json", s)
	}
}

// Header is the CSV column order.
var Header = []string{
	"id", "notification_id", "package_name", "key", "tag", "post_time", "is_clearable",
	"category", "title", "text", "expense_type", "amount", "currency",
	"latitude", "longitude", "created_at",
}

// Write encodes rows to w in format f.
func Write(w io.Writer, f Format, rows []api.StoredNotification) error {
	switch f {
	case FormatCSV:
		return CSV(w, rows)
	case FormatJSON:
		return JSON(w, rows)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// CSV writes a header row followed by one record per row.
func CSV(w io.Writer, rows []api.StoredNotification) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.SerialID, 10),
			strconv.FormatInt(r.ID, 10),
			r.PackageName,
			r.Key,
			str(r.Tag),
			strconv.FormatInt(r.PostTime, 10),
			strconv.FormatBool(r.IsClearable),
			str(r.Category),
			str(r.Title),
			str(r.Text),
			str(r.ExpenseType),
			float(r.Amount, 2),
			str(r.Currency),
			float(r.Latitude, -1),
			float(r.Longitude, -1),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv record %d: %w", r.SerialID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// JSON writes rows as an indented array.
func JSON(w io.Writer, rows []api.StoredNotification) error {
	if rows == nil {
		rows = []api.StoredNotification{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func float(f *float64, prec int) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', prec, 64)
}

// Lister reads pages of stored notifications.
type Lister interface {
	List(ctx context.Context, page api.Page) ([]api.StoredNotification, error)
}

// Collect reads up to limit rows from l, newest first, in pages of at
// most api.MaxLimit. A limit of zero reads everything.
func Collect(ctx context.Context, l Lister, limit int) ([]api.StoredNotification, error) {
	var out []api.StoredNotification
	for {
		size := api.MaxLimit
		if limit > 0 {
			remaining := limit - len(out)
			if remaining <= 0 {
				return out, nil
			}
			size = min(size, remaining)
		}

		rows, err := l.List(ctx, api.Page{Limit: size, Offset: len(out)})
		if err != nil {
			return nil, fmt.Errorf("reading page at offset %d: %w", len(out), err)
		}
		out = append(out, rows...)
		if len(rows) < size {
			return out, nil
		}
	}
}

// Config describes an export file.
type Config struct {
	// FilePath is the output file. An empty path writes to Output.
	FilePath string
	Format   Format
	// Output is used when FilePath is empty. Defaults to os.Stdout.
	Output io.Writer
}

// ToFile writes rows according to cfg.
func ToFile(cfg Config, rows []api.StoredNotification, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.FilePath == "" {
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		return Write(out, cfg.Format, rows)
	}

	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("opening export file: %w", err)
	}

	if err := Write(file, cfg.Format, rows); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			return fmt.Errorf("%w (close error: %w)", err, closeErr)
		}
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing export file: %w", err)
	}

	logger.Info("exported notifications", "file", cfg.FilePath, "format", cfg.Format, "count", len(rows))
	return nil
}
