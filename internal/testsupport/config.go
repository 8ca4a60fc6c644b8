package testsupport

import (
	"path/filepath"
	"testing"

	"mediawatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a valid config seeded with unique temp directories per
// test. It defaults the required source credentials and applies any provided
// options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Jellyfin.URL = "http://jellyfin.invalid"
	cfgVal.Jellyfin.APIKey = "test"
	cfgVal.Jellyfin.UserID = "user"
	cfgVal.TMDB.APIKey = "test"
	cfgVal.TMDB.RequestsPerSecond = 0
	cfgVal.Freshness.DBPath = filepath.Join(base, "freshness.db")
	cfgVal.Schedule.LockPath = filepath.Join(base, "mediawatch.lock")
	cfgVal.Retry.InitialDelaySeconds = 0
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithJellyfinURL points the library source at a test server.
func WithJellyfinURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jellyfin.URL = url
	}
}

// WithTMDBBaseURL points the TMDB catalog source at a test server.
func WithTMDBBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.BaseURL = url
	}
}

// WithFeeds configures RSS feed URLs.
func WithFeeds(urls ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Feeds.URLs = urls
	}
}

// WithFreshnessBackend selects the dedup store backend.
func WithFreshnessBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Freshness.Backend = backend
	}
}

// WithNtfyTopic enables ntfy delivery to the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ntfy.Topic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.DataDir
}
