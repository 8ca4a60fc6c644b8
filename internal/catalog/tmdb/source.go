package tmdb

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"mediawatch/internal/config"
	"mediawatch/internal/logging"
	"mediawatch/internal/media"
	"mediawatch/internal/textutil"
)

const (
	sourceName = "tmdb"
	// recentEpisodeWindow bounds how old a last-aired episode may be before it
	// stops counting as a release.
	recentEpisodeWindow = 14 * 24 * time.Hour
	dateLayout          = "2006-01-02"
)

// Source is the TMDB catalog source.
type Source struct {
	client              *Client
	releases            bool
	recommendations     bool
	recommendationLimit int
	now                 func() time.Time
	logger              *slog.Logger

	mu      sync.Mutex
	movies  []Result
	fetched bool
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithClock overrides time.Now for episode recency checks.
func WithClock(now func() time.Time) SourceOption {
	return func(s *Source) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) SourceOption {
	return func(s *Source) {
		s.logger = logging.NewComponentLogger(logger, "tmdb")
	}
}

// NewSource wraps a client. Releases and recommendations can be toggled
// independently; limit caps recommendations per subject (0 = no cap).
func NewSource(client *Client, releases, recommendations bool, limit int, opts ...SourceOption) *Source {
	s := &Source{
		client:              client,
		releases:            releases,
		recommendations:     recommendations,
		recommendationLimit: limit,
		now:                 time.Now,
		logger:              logging.NewComponentLogger(nil, "tmdb"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSourceFromConfig builds the source from the [tmdb] section.
func NewSourceFromConfig(cfg *config.Config, logger *slog.Logger) (*Source, error) {
	client, err := New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		WithRegion(cfg.TMDB.Region),
		WithRateLimit(cfg.TMDB.RequestsPerSecond),
		WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TMDB.RequestTimeout) * time.Second}),
	)
	if err != nil {
		return nil, err
	}
	return NewSource(client, cfg.TMDB.Releases, cfg.TMDB.Recommendations, cfg.TMDB.RecommendationLimit, WithLogger(logger)), nil
}

func (s *Source) Name() string {
	return sourceName
}

// BeginRun drops the cached release lists so each run sees fresh data.
func (s *Source) BeginRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies = nil
	s.fetched = false
}

func (s *Source) ListCandidates(ctx context.Context, subject media.Subject) ([]media.CandidateFact, error) {
	var facts []media.CandidateFact
	if s.releases {
		var (
			released []media.CandidateFact
			err      error
		)
		switch subject.Kind {
		case media.KindMovie:
			released, err = s.movieReleases(ctx, subject)
		case media.KindSeries:
			released, err = s.episodeReleases(ctx, subject)
		}
		if err != nil {
			return nil, err
		}
		facts = append(facts, released...)
	}
	if s.recommendations {
		recs, err := s.recommendationsFor(ctx, subject)
		if err != nil {
			return nil, err
		}
		facts = append(facts, recs...)
	}
	return facts, nil
}

// releaseList fetches now playing and upcoming once per run. Failures are not
// cached so a retried subject fetches again.
func (s *Source) releaseList(ctx context.Context) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetched {
		return s.movies, nil
	}
	nowPlaying, err := s.client.NowPlaying(ctx)
	if err != nil {
		return nil, err
	}
	upcoming, err := s.client.Upcoming(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(nowPlaying)+len(upcoming))
	movies := make([]Result, 0, len(nowPlaying)+len(upcoming))
	for _, r := range append(nowPlaying, upcoming...) {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		movies = append(movies, r)
	}
	s.movies = movies
	s.fetched = true
	s.logger.Debug("tmdb release list cached", logging.Int("movies", len(movies)))
	return movies, nil
}

func (s *Source) movieReleases(ctx context.Context, subject media.Subject) ([]media.CandidateFact, error) {
	movies, err := s.releaseList(ctx)
	if err != nil {
		return nil, err
	}
	var facts []media.CandidateFact
	for _, movie := range movies {
		if !matchesSubject(subject, movie) || movie.ReleaseDate == "" {
			continue
		}
		rating, err := s.client.MovieCertification(ctx, movie.ID)
		if err != nil {
			return nil, err
		}
		facts = append(facts, media.CandidateFact{
			SubjectID:    subject.ID,
			SubjectTitle: subject.Title,
			Kind:         media.FactRelease,
			Key:          movie.ReleaseDate,
			Title:        movie.DisplayTitle(),
			Rating:       rating,
			MediaKind:    media.KindMovie,
			CatalogID:    fmt.Sprint(movie.ID),
			Source:       sourceName,
			URL:          webURL(media.KindMovie, movie.ID),
		})
	}
	return facts, nil
}

func matchesSubject(subject media.Subject, movie Result) bool {
	if subject.TMDBID != 0 {
		return subject.TMDBID == movie.ID
	}
	return textutil.SameTitle(subject.Title, movie.DisplayTitle())
}

func (s *Source) episodeReleases(ctx context.Context, subject media.Subject) ([]media.CandidateFact, error) {
	id, err := s.resolveID(ctx, subject)
	if err != nil || id == 0 {
		return nil, err
	}
	details, err := s.client.GetTVDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	episode := s.pickEpisode(details)
	if episode == nil {
		return nil, nil
	}
	rating, err := s.client.TVContentRating(ctx, id)
	if err != nil {
		return nil, err
	}
	name := details.Name
	if name == "" {
		name = subject.Title
	}
	title := fmt.Sprintf("%s S%02dE%02d", name, episode.SeasonNumber, episode.EpisodeNumber)
	if episode.Name != "" {
		title += " " + episode.Name
	}
	return []media.CandidateFact{{
		SubjectID:    subject.ID,
		SubjectTitle: subject.Title,
		Kind:         media.FactRelease,
		Key:          episode.AirDate,
		Title:        title,
		Rating:       rating,
		MediaKind:    media.KindSeries,
		CatalogID:    fmt.Sprint(id),
		Source:       sourceName,
		URL:          webURL(media.KindSeries, id),
	}}, nil
}

// pickEpisode prefers the next scheduled episode and falls back to one that
// aired recently.
func (s *Source) pickEpisode(details *TVDetails) *Episode {
	if ep := details.NextEpisodeToAir; ep != nil && ep.AirDate != "" {
		return ep
	}
	ep := details.LastEpisodeToAir
	if ep == nil || ep.AirDate == "" {
		return nil
	}
	aired, err := time.Parse(dateLayout, ep.AirDate)
	if err != nil || s.now().Sub(aired) > recentEpisodeWindow {
		return nil
	}
	return ep
}

func (s *Source) recommendationsFor(ctx context.Context, subject media.Subject) ([]media.CandidateFact, error) {
	if subject.Kind == media.KindUnknown {
		return nil, nil
	}
	id, err := s.resolveID(ctx, subject)
	if err != nil || id == 0 {
		return nil, err
	}
	results, err := s.client.Recommendations(ctx, subject.Kind, id)
	if err != nil {
		return nil, err
	}
	if s.recommendationLimit > 0 && len(results) > s.recommendationLimit {
		results = results[:s.recommendationLimit]
	}
	facts := make([]media.CandidateFact, 0, len(results))
	for _, rec := range results {
		kind := subject.Kind
		if mt := media.ParseKind(rec.MediaType); mt != media.KindUnknown {
			kind = mt
		}
		rating, err := s.client.Certification(ctx, kind, rec.ID)
		if err != nil {
			return nil, err
		}
		facts = append(facts, media.CandidateFact{
			SubjectID:    subject.ID,
			SubjectTitle: subject.Title,
			Kind:         media.FactRecommendation,
			Key:          fmt.Sprintf("rec:%s:%d", kind, rec.ID),
			Title:        rec.DisplayTitle(),
			Rating:       rating,
			MediaKind:    kind,
			CatalogID:    fmt.Sprint(rec.ID),
			Source:       sourceName,
			URL:          webURL(kind, rec.ID),
		})
	}
	return facts, nil
}

// resolveID returns the subject's TMDB id, searching by title when the
// library has no provider id. Zero means no confident match.
func (s *Source) resolveID(ctx context.Context, subject media.Subject) (int64, error) {
	if subject.TMDBID != 0 {
		return subject.TMDBID, nil
	}
	results, err := s.client.Search(ctx, subject.Kind, subject.Title, subject.Year)
	if err != nil {
		return 0, err
	}
	for _, r := range results {
		if textutil.SameTitle(subject.Title, r.DisplayTitle()) {
			return r.ID, nil
		}
	}
	s.logger.Debug("no tmdb match for subject",
		logging.String(logging.FieldSubjectID, subject.ID),
		logging.String("title", subject.Title),
	)
	return 0, nil
}

func webURL(kind media.Kind, id int64) string {
	return fmt.Sprintf("https://www.themoviedb.org/%s/%d", pathKind(kind), id)
}
