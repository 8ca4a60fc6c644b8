package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mediawatch/internal/catalog"
	"mediawatch/internal/freshness"
	"mediawatch/internal/logging"
	"mediawatch/internal/media"
	"mediawatch/internal/notifications"
	"mediawatch/internal/retry"
)

const defaultConcurrency = 4

// LibrarySource lists the subjects a run works on.
type LibrarySource interface {
	ListSubjects(ctx context.Context) ([]media.Subject, error)
}

// Pipeline wires the run collaborators together. It is safe to call RunOnce
// repeatedly but not concurrently; the daemon serializes runs.
type Pipeline struct {
	library     LibrarySource
	catalog     catalog.Source
	store       freshness.Store
	notifier    notifications.Service
	executor    *retry.Executor
	policy      freshness.Policy
	concurrency int
	fetchCache  bool
	logger      *slog.Logger
	now         func() time.Time
	newRunID    func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency bounds the per-subject catalog fan-out.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPolicy sets the freshness categories used for facts and the fetch cache.
func WithPolicy(policy freshness.Policy) Option {
	return func(p *Pipeline) {
		p.policy = policy
	}
}

// WithFetchCache enables suppression of repeat catalog fetches per subject.
func WithFetchCache(enabled bool) Option {
	return func(p *Pipeline) {
		p.fetchCache = enabled
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logging.NewComponentLogger(logger, "pipeline")
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRunIDs overrides run id generation.
func WithRunIDs(next func() string) Option {
	return func(p *Pipeline) {
		if next != nil {
			p.newRunID = next
		}
	}
}

// New builds a pipeline. A nil notifier discards digests and a nil executor
// uses the default retry policy.
func New(library LibrarySource, source catalog.Source, store freshness.Store, notifier notifications.Service, executor *retry.Executor, opts ...Option) *Pipeline {
	if notifier == nil {
		notifier = notifications.Noop()
	}
	if executor == nil {
		executor = retry.New(retry.DefaultPolicy())
	}
	p := &Pipeline{
		library:     library,
		catalog:     source,
		store:       store,
		notifier:    notifier,
		executor:    executor,
		policy:      freshness.NewPolicy(30*24*time.Hour, 24*time.Hour),
		concurrency: defaultConcurrency,
		logger:      logging.NewComponentLogger(nil, "pipeline"),
		now:         time.Now,
		newRunID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) fetchCacheKey() string {
	return freshness.CategoryCatalogFetch + ":" + p.catalog.Name()
}
