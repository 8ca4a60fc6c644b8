package freshness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mediawatch/internal/config"
	"mediawatch/internal/services"
)

// ErrConflict is returned by RecordSeen when the pair already has a live record.
var ErrConflict = services.ErrConflict

// Record is a persisted Notification Record. It is never updated.
type Record struct {
	ID         int64             `json:"id,omitempty"`
	SubjectID  string            `json:"subject_id"`
	FactKey    string            `json:"fact_key"`
	Category   string            `json:"category"`
	Attributes map[string]string `json:"attributes,omitempty"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// HistoryFilter narrows a History listing. Zero values match everything.
type HistoryFilter struct {
	SubjectID string
	Category  string
	Limit     int
}

func (f HistoryFilter) matches(r Record) bool {
	if f.SubjectID != "" && r.SubjectID != f.SubjectID {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	return true
}

// Store is the dedup state shared by every run.
type Store interface {
	// WasSeen reports whether a live record exists for the pair.
	WasSeen(ctx context.Context, subjectID, factKey string, category Category) (bool, error)
	// RecordSeen appends a record, failing with ErrConflict when the pair is
	// still live. A zero RecordedAt is stamped with the store clock.
	RecordSeen(ctx context.Context, rec Record, category Category) error
	// History lists records newest first.
	History(ctx context.Context, filter HistoryFilter) ([]Record, error)
	Close() error
}

// Open constructs the backend selected in cfg.Freshness.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Freshness.Backend {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.Freshness.DBPath, WithLogger(logger))
	case "redis":
		return OpenRedis(ctx, cfg.Freshness.RedisURL, cfg.Freshness.RedisPrefix, WithLogger(logger))
	case "memory":
		return NewMemoryStore(WithLogger(logger)), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "freshness", "open", fmt.Sprintf("unsupported backend %q", cfg.Freshness.Backend), nil)
	}
}

// Option configures a backend.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock overrides time.Now, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger attaches a logger used for malformed-row warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func conflictError(subjectID, factKey string, category Category) error {
	return services.Wrap(ErrConflict, "persist", "record_seen",
		fmt.Sprintf("%s %q/%q already has a live record", category.Name, subjectID, factKey), nil)
}

func validateRecord(rec Record) error {
	if rec.SubjectID == "" || rec.FactKey == "" {
		return services.Wrap(services.ErrFatal, "persist", "record_seen", "subject id and fact key are required", nil)
	}
	return nil
}

// newest returns the latest non-zero timestamp.
func newest(stamps ...time.Time) time.Time {
	var latest time.Time
	for _, ts := range stamps {
		if ts.After(latest) {
			latest = ts
		}
	}
	return latest
}
