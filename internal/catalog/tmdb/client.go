package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mediawatch/internal/media"
	"mediawatch/internal/services"
)

const (
	stageName    = "fetch_candidates"
	maxListPages = 3
)

// Result represents a single TMDB movie or series entry.
type Result struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	MediaType    string  `json:"media_type"`
	Popularity   float64 `json:"popularity"`
}

// DisplayTitle returns the movie title or series name.
func (r Result) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// Response models the TMDB paginated list response.
type Response struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// Episode describes a single TMDB episode entry.
type Episode struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	AirDate       string `json:"air_date"`
}

// TVDetails is the subset of /tv/{id} used to find upcoming episodes.
type TVDetails struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	NextEpisodeToAir *Episode `json:"next_episode_to_air"`
	LastEpisodeToAir *Episode `json:"last_episode_to_air"`
}

type releaseDatesResponse struct {
	Results []struct {
		Country  string `json:"iso_3166_1"`
		Releases []struct {
			Certification string `json:"certification"`
			Type          int    `json:"type"`
		} `json:"release_dates"`
	} `json:"results"`
}

type contentRatingsResponse struct {
	Results []struct {
		Country string `json:"iso_3166_1"`
		Rating  string `json:"rating"`
	} `json:"results"`
}

// Client provides rate-limited access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	region     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRegion sets the ISO 3166-1 country used for certifications.
func WithRegion(region string) Option {
	return func(c *Client) {
		if region = strings.ToUpper(strings.TrimSpace(region)); region != "" {
			c.region = region
		}
	}
}

// WithRateLimit caps outgoing requests per second. A value <= 0 disables the
// limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "tmdb", "api key required", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "tmdb", "base url required", nil)
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		region:     "US",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NowPlaying lists movies currently in theatres for the client region.
func (c *Client) NowPlaying(ctx context.Context) ([]Result, error) {
	return c.list(ctx, "/movie/now_playing")
}

// Upcoming lists movies with an upcoming release in the client region.
func (c *Client) Upcoming(ctx context.Context) ([]Result, error) {
	return c.list(ctx, "/movie/upcoming")
}

func (c *Client) list(ctx context.Context, path string) ([]Result, error) {
	var results []Result
	for page := 1; page <= maxListPages; page++ {
		var payload Response
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("region", c.region)
		if err := c.get(ctx, path, params, &payload); err != nil {
			return nil, err
		}
		results = append(results, payload.Results...)
		if page >= payload.TotalPages {
			break
		}
	}
	return results, nil
}

// MovieCertification returns the region certification for a movie, preferring
// the theatrical release. An empty string means no rating is published.
func (c *Client) MovieCertification(ctx context.Context, movieID int64) (string, error) {
	var payload releaseDatesResponse
	if err := c.get(ctx, fmt.Sprintf("/movie/%d/release_dates", movieID), nil, &payload); err != nil {
		return "", err
	}
	for _, country := range payload.Results {
		if !strings.EqualFold(country.Country, c.region) {
			continue
		}
		fallback := ""
		for _, rel := range country.Releases {
			cert := strings.TrimSpace(rel.Certification)
			if cert == "" {
				continue
			}
			if rel.Type == 3 {
				return cert, nil
			}
			if fallback == "" {
				fallback = cert
			}
		}
		return fallback, nil
	}
	return "", nil
}

// TVContentRating returns the region content rating for a series.
func (c *Client) TVContentRating(ctx context.Context, showID int64) (string, error) {
	var payload contentRatingsResponse
	if err := c.get(ctx, fmt.Sprintf("/tv/%d/content_ratings", showID), nil, &payload); err != nil {
		return "", err
	}
	for _, entry := range payload.Results {
		if strings.EqualFold(entry.Country, c.region) {
			return strings.TrimSpace(entry.Rating), nil
		}
	}
	return "", nil
}

// Certification dispatches to the movie or series rating endpoint.
func (c *Client) Certification(ctx context.Context, kind media.Kind, id int64) (string, error) {
	if kind == media.KindSeries {
		return c.TVContentRating(ctx, id)
	}
	return c.MovieCertification(ctx, id)
}

// GetTVDetails returns the series record with its next and last episodes.
func (c *Client) GetTVDetails(ctx context.Context, showID int64) (*TVDetails, error) {
	var payload TVDetails
	if err := c.get(ctx, fmt.Sprintf("/tv/%d", showID), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Recommendations lists TMDB recommendations for a movie or series.
func (c *Client) Recommendations(ctx context.Context, kind media.Kind, id int64) ([]Result, error) {
	var payload Response
	if err := c.get(ctx, fmt.Sprintf("/%s/%d/recommendations", pathKind(kind), id), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// Search finds movies or series by title, optionally filtered by year.
func (c *Client) Search(ctx context.Context, kind media.Kind, query string, year int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)
	if year > 0 {
		if kind == media.KindSeries {
			params.Set("first_air_date_year", strconv.Itoa(year))
		} else {
			params.Set("primary_release_year", strconv.Itoa(year))
		}
	}
	var payload Response
	if err := c.get(ctx, "/search/"+pathKind(kind), params, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, stageName, "tmdb", "parse url", err)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.TransportError(stageName, "tmdb", fmt.Errorf("%s (latency=%v): %w", path, latency, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return services.StatusError(stageName, "tmdb "+path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, stageName, "tmdb "+path, "decode response", err)
	}
	return nil
}

func pathKind(kind media.Kind) string {
	if kind == media.KindSeries {
		return "tv"
	}
	return "movie"
}
