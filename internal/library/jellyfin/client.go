package jellyfin

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

	"mediawatch/internal/config"
	"mediawatch/internal/media"
	"mediawatch/internal/services"
)

const (
	stageName   = "fetch_library"
	defaultPage = 500
)

// HTTPDoer describes the HTTP client used by the Jellyfin client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client lists library items for a single Jellyfin user.
type Client struct {
	baseURL   string
	apiKey    string
	userID    string
	itemTypes []string
	pageSize  int
	client    HTTPDoer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithPageSize overrides how many items are requested per page.
func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// New constructs a Jellyfin client.
func New(baseURL, apiKey, userID string, itemTypes []string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	apiKey = strings.TrimSpace(apiKey)
	userID = strings.TrimSpace(userID)
	if baseURL == "" || apiKey == "" || userID == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "jellyfin", "url, api key, and user id are required", nil)
	}
	if len(itemTypes) == 0 {
		itemTypes = []string{"Movie", "Series"}
	}
	c := &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		userID:    userID,
		itemTypes: itemTypes,
		pageSize:  defaultPage,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig builds a client from the [jellyfin] config section.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("jellyfin: config is nil")
	}
	return New(cfg.Jellyfin.URL, cfg.Jellyfin.APIKey, cfg.Jellyfin.UserID, cfg.Jellyfin.ItemTypes, opts...)
}

type itemsResponse struct {
	Items            []item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

type item struct {
	ID             string            `json:"Id"`
	Name           string            `json:"Name"`
	Type           string            `json:"Type"`
	ProductionYear int               `json:"ProductionYear"`
	ProviderIDs    map[string]string `json:"ProviderIds"`
}

// ListSubjects returns every movie and series in the user's library.
func (c *Client) ListSubjects(ctx context.Context) ([]media.Subject, error) {
	var subjects []media.Subject
	for start := 0; ; {
		page, err := c.fetchPage(ctx, start)
		if err != nil {
			return nil, err
		}
		for _, it := range page.Items {
			if subject, ok := toSubject(it); ok {
				subjects = append(subjects, subject)
			}
		}
		start += len(page.Items)
		if len(page.Items) == 0 || start >= page.TotalRecordCount {
			break
		}
	}
	return subjects, nil
}

func (c *Client) fetchPage(ctx context.Context, start int) (*itemsResponse, error) {
	endpoint, err := url.Parse(fmt.Sprintf("%s/Users/%s/Items", c.baseURL, url.PathEscape(c.userID)))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "jellyfin", "parse url", err)
	}
	params := url.Values{}
	params.Set("Recursive", "true")
	params.Set("IncludeItemTypes", strings.Join(c.itemTypes, ","))
	params.Set("Fields", "ProviderIds,ProductionYear")
	params.Set("StartIndex", strconv.Itoa(start))
	params.Set("Limit", strconv.Itoa(c.pageSize))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build jellyfin items request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.TransportError(stageName, "jellyfin", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.StatusError(stageName, "jellyfin", resp)
	}

	var payload itemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, services.Wrap(services.ErrTransient, stageName, "jellyfin", "decode items response", err)
	}
	return &payload, nil
}

func toSubject(it item) (media.Subject, bool) {
	kind := media.ParseKind(it.Type)
	name := strings.TrimSpace(it.Name)
	if kind == media.KindUnknown || it.ID == "" || name == "" {
		return media.Subject{}, false
	}
	subject := media.Subject{
		ID:    it.ID,
		Title: name,
		Kind:  kind,
		Year:  it.ProductionYear,
	}
	for key, value := range it.ProviderIDs {
		if strings.EqualFold(key, "tmdb") {
			if id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
				subject.TMDBID = id
			}
		}
	}
	return subject, true
}
