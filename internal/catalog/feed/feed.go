// Package feed matches RSS and Atom release feeds against library titles.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"mediawatch/internal/logging"
	"mediawatch/internal/media"
	"mediawatch/internal/services"
	"mediawatch/internal/textutil"
)

const sourceName = "feed"

// Item is a parsed feed entry.
type Item struct {
	ID         string
	Title      string
	Link       string
	Categories []string
	Published  time.Time
}

// Source fetches each configured feed once per run and reports items whose
// title mentions a subject.
type Source struct {
	urls     []string
	maxItems int
	client   *http.Client
	parser   *gofeed.Parser
	logger   *slog.Logger

	mu      sync.Mutex
	items   []Item
	fetched bool
}

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Source) {
		if client != nil {
			s.client = client
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logging.NewComponentLogger(logger, "feed")
	}
}

// New builds a feed source. maxItems caps entries read per feed (0 = all).
func New(urls []string, maxItems int, opts ...Option) *Source {
	s := &Source{
		urls:     urls,
		maxItems: maxItems,
		client:   &http.Client{Timeout: 30 * time.Second},
		parser:   gofeed.NewParser(),
		logger:   logging.NewComponentLogger(nil, "feed"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Name() string {
	return sourceName
}

func (s *Source) BeginRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.fetched = false
}

func (s *Source) ListCandidates(ctx context.Context, subject media.Subject) ([]media.CandidateFact, error) {
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	var facts []media.CandidateFact
	for _, item := range items {
		if !textutil.ContainsTitle(item.Title, subject.Title) {
			continue
		}
		facts = append(facts, media.CandidateFact{
			SubjectID:    subject.ID,
			SubjectTitle: subject.Title,
			Kind:         media.FactRelease,
			Key:          item.ID,
			Title:        item.Title,
			Rating:       ratingFromCategories(item.Categories),
			MediaKind:    subject.Kind,
			Source:       sourceName,
			URL:          item.Link,
		})
	}
	return facts, nil
}

// load fetches every feed once per run. A feed that fails is logged and
// skipped unless every feed fails.
func (s *Source) load(ctx context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetched {
		return s.items, nil
	}
	var (
		items   []Item
		lastErr error
		failed  int
	)
	for _, url := range s.urls {
		got, err := s.fetch(ctx, url)
		if err != nil {
			if services.IsFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			failed++
			lastErr = err
			logging.WarnWithContext(s.logger, "feed fetch failed", "feed_fetch_failed",
				logging.String("url", url),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the feed URL is reachable"),
				logging.String(logging.FieldImpact, "items from this feed are skipped this run"),
			)
			continue
		}
		items = append(items, got...)
	}
	if failed > 0 && failed == len(s.urls) {
		return nil, lastErr
	}
	s.items = items
	s.fetched = true
	return items, nil
}

func (s *Source) fetch(ctx context.Context, url string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "fetch_candidates", "feed", "build request", err)
	}
	req.Header.Set("User-Agent", "mediawatch")
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.TransportError("fetch_candidates", "feed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.StatusError("fetch_candidates", "feed", resp)
	}

	parsed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch_candidates", "feed", fmt.Sprintf("parse %s", url), err)
	}
	count := len(parsed.Items)
	if s.maxItems > 0 && count > s.maxItems {
		count = s.maxItems
	}
	items := make([]Item, 0, count)
	for _, entry := range parsed.Items[:count] {
		id := strings.TrimSpace(entry.GUID)
		if id == "" {
			id = strings.TrimSpace(entry.Link)
		}
		if id == "" || strings.TrimSpace(entry.Title) == "" {
			continue
		}
		item := Item{
			ID:         id,
			Title:      strings.TrimSpace(entry.Title),
			Link:       entry.Link,
			Categories: append([]string(nil), entry.Categories...),
		}
		if entry.PublishedParsed != nil {
			item.Published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			item.Published = *entry.UpdatedParsed
		}
		items = append(items, item)
	}
	return items, nil
}

// ratingFromCategories picks a category that looks like an age rating, e.g.
// "PG-13" or "TV-MA".
func ratingFromCategories(categories []string) string {
	for _, c := range categories {
		value := strings.ToUpper(strings.TrimSpace(c))
		if rest, ok := strings.CutPrefix(value, "RATING:"); ok {
			return strings.TrimSpace(rest)
		}
		switch value {
		case "G", "PG", "PG-13", "R", "NC-17", "TV-Y", "TV-Y7", "TV-G", "TV-PG", "TV-14", "TV-MA":
			return value
		}
	}
	return ""
}
