package freshness

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"mediawatch/internal/logging"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore persists records in a local SQLite database.
type SQLiteStore struct {
	db   *sqlx.DB
	path string
	opts options
}

type recordRow struct {
	ID         int64          `db:"id"`
	SubjectID  string         `db:"subject_id"`
	FactKey    string         `db:"fact_key"`
	Category   string         `db:"category"`
	Attributes sql.NullString `db:"attributes"`
	RecordedAt sql.NullString `db:"recorded_at"`
}

// OpenSQLite opens or creates the database at path. Transactions begin
// IMMEDIATE so the check-then-insert in RecordSeen holds the write lock from
// the first read.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("freshness: sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &SQLiteStore{db: db, path: path, opts: buildOptions(opts)}
	if err := retryOnBusy(ctx, func() error { return store.initSchema(ctx) }); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func sqliteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) WasSeen(ctx context.Context, subjectID, factKey string, category Category) (bool, error) {
	var stamps []sql.NullString
	err := retryOnBusy(ctx, func() error {
		stamps = stamps[:0]
		return s.db.SelectContext(ctx, &stamps,
			"SELECT recorded_at FROM notification_records WHERE subject_id = ? AND fact_key = ?",
			subjectID, factKey)
	})
	if err != nil {
		return false, fmt.Errorf("query records for %s/%s: %w", subjectID, factKey, err)
	}
	return category.Live(s.latest(stamps), s.opts.now()), nil
}

func (s *SQLiteStore) RecordSeen(ctx context.Context, rec Record, category Category) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.opts.now()
	}
	attrs, err := json.Marshal(nonNilAttributes(rec.Attributes))
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}

	var conflict bool
	err = retryOnBusy(ctx, func() error {
		conflict = false
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var stamps []sql.NullString
		if err := tx.SelectContext(ctx, &stamps,
			"SELECT recorded_at FROM notification_records WHERE subject_id = ? AND fact_key = ?",
			rec.SubjectID, rec.FactKey); err != nil {
			return err
		}
		if category.Live(s.latest(stamps), s.opts.now()) {
			conflict = true
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notification_records (subject_id, fact_key, category, attributes, recorded_at)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.SubjectID, rec.FactKey, category.Name, string(attrs), formatTimestamp(rec.RecordedAt),
		); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("record %s/%s: %w", rec.SubjectID, rec.FactKey, err)
	}
	if conflict {
		return conflictError(rec.SubjectID, rec.FactKey, category)
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, filter HistoryFilter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if filter.SubjectID != "" {
		where = append(where, "subject_id = ?")
		args = append(args, filter.SubjectID)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	query := "SELECT id, subject_id, fact_key, category, attributes, recorded_at FROM notification_records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.toRecord(row))
	}
	return out, nil
}

func (s *SQLiteStore) toRecord(row recordRow) Record {
	rec := Record{
		ID:        row.ID,
		SubjectID: row.SubjectID,
		FactKey:   row.FactKey,
		Category:  row.Category,
	}
	if row.Attributes.Valid && row.Attributes.String != "" {
		if err := json.Unmarshal([]byte(row.Attributes.String), &rec.Attributes); err != nil {
			logging.WarnWithContext(s.opts.logger, "notification record attributes unreadable", "freshness_attributes_invalid",
				logging.Any("record_id", row.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "history shows the record without attributes"),
			)
		}
	}
	if row.RecordedAt.Valid {
		if ts, err := parseTimestamp(row.RecordedAt.String); err == nil {
			rec.RecordedAt = ts
		}
	}
	return rec
}

// latest returns the newest parseable timestamp. Unparseable values are
// skipped so a corrupt row fails open.
func (s *SQLiteStore) latest(stamps []sql.NullString) time.Time {
	var latest time.Time
	for _, raw := range stamps {
		if !raw.Valid {
			continue
		}
		ts, err := parseTimestamp(raw.String)
		if err != nil {
			logging.WarnWithContext(s.opts.logger, "notification record timestamp unreadable; treating as expired", "freshness_timestamp_invalid",
				logging.String("recorded_at", raw.String),
				logging.String(logging.FieldImpact, "the fact may be announced again"),
			)
			continue
		}
		latest = newest(latest, ts)
	}
	return latest
}

// timestampLayout is fixed width so recorded_at sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse(time.DateTime, value)
}

func nonNilAttributes(attrs map[string]string) map[string]string {
	if attrs == nil {
		return map[string]string{}
	}
	return attrs
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
