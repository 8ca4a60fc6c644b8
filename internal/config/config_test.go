package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"mediawatch/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JELLYFIN_URL", "http://jellyfin.local:8096/")
	t.Setenv("JELLYFIN_API_KEY", "jf-key")
	t.Setenv("JELLYFIN_USER_ID", "user-1")
	t.Setenv("TMDB_API_KEY", "test-key")
}

func validConfig() config.Config {
	cfg := config.Default()
	cfg.Jellyfin.URL = "http://jellyfin.local:8096"
	cfg.Jellyfin.APIKey = "jf"
	cfg.Jellyfin.UserID = "u"
	cfg.TMDB.APIKey = "key"
	cfg.Freshness.DBPath = "/tmp/freshness.db"
	return cfg
}

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	setRequiredEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "mediawatch", "config.toml") {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "mediawatch")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Freshness.DBPath != filepath.Join(wantData, "freshness.db") {
		t.Fatalf("unexpected db path: %q", cfg.Freshness.DBPath)
	}
	if cfg.Schedule.LockPath != filepath.Join(wantData, "mediawatch.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.Schedule.LockPath)
	}
	if cfg.Jellyfin.URL != "http://jellyfin.local:8096" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Jellyfin.URL)
	}
	if cfg.TMDB.APIKey != "test-key" {
		t.Fatalf("expected TMDB key from env, got %q", cfg.TMDB.APIKey)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.RetryInitialDelay() != 2*time.Second || cfg.Retry.BackoffFactor != 2 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.RecommendationWindow() != 30*24*time.Hour {
		t.Fatalf("unexpected recommendation window: %s", cfg.RecommendationWindow())
	}
	if cfg.FetchWindow() != 24*time.Hour {
		t.Fatalf("unexpected fetch window: %s", cfg.FetchWindow())
	}
	if cfg.Schedule.Cron != "@hourly" {
		t.Fatalf("unexpected cron: %q", cfg.Schedule.Cron)
	}
}

func TestLoadCustomPath(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "mediawatch.toml")

	type payload struct {
		TMDB struct {
			APIKey  string `toml:"api_key"`
			BaseURL string `toml:"base_url"`
		} `toml:"tmdb"`
		Freshness struct {
			RecommendationWindowDays int `toml:"recommendation_window_days"`
		} `toml:"freshness"`
		Email struct {
			RecipientGroups map[string][]string `toml:"recipient_groups"`
		} `toml:"email"`
	}
	custom := payload{}
	custom.TMDB.APIKey = "abc123"
	custom.TMDB.BaseURL = "https://example.com/tmdb/"
	custom.Freshness.RecommendationWindowDays = 7
	custom.Email.RecipientGroups = map[string][]string{" Teen ": {" kid@example.com "}}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.TMDB.APIKey != "abc123" {
		t.Fatalf("expected TMDB key from file to win over env, got %q", cfg.TMDB.APIKey)
	}
	if cfg.TMDB.BaseURL != "https://example.com/tmdb" {
		t.Fatalf("expected TMDB base url override, got %q", cfg.TMDB.BaseURL)
	}
	if cfg.RecommendationWindow() != 7*24*time.Hour {
		t.Fatalf("expected 7 day window, got %s", cfg.RecommendationWindow())
	}
	if got := cfg.Email.RecipientGroups["teen"]; len(got) != 1 || got[0] != "kid@example.com" {
		t.Fatalf("expected normalized recipient group, got %v", cfg.Email.RecipientGroups)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	setRequiredEnv(t)
	configPath := filepath.Join(t.TempDir(), "mediawatch.toml")
	if err := os.WriteFile(configPath, []byte("[tmdb]\napi_kee = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadRequiresJellyfin(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("TMDB_API_KEY", "k")
	t.Setenv("JELLYFIN_URL", "")
	t.Setenv("JELLYFIN_API_KEY", "")
	t.Setenv("JELLYFIN_USER_ID", "")

	_, _, _, err := config.Load("")
	if err == nil || !strings.Contains(err.Error(), "jellyfin.url is required") {
		t.Fatalf("expected jellyfin url error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path, config.SampleOptions{}); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_tmdb_api_key_here") {
		t.Fatalf("sample config missing placeholder TMDB key: %s", contents)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if !strings.Contains(cfg.Paths.DataDir, "mediawatch") {
		t.Fatalf("expected data dir to contain mediawatch, got %q", cfg.Paths.DataDir)
	}
}

func TestRenderSampleSeedsValues(t *testing.T) {
	t.Setenv("JELLYFIN_API_KEY", "from-env")
	t.Setenv("JELLYFIN_USER_ID", "user-env")
	t.Setenv("TMDB_API_KEY", "tmdb-env")

	content := config.RenderSample(config.SampleOptions{
		JellyfinURL:    "http://media.lan:8096",
		Feeds:          []string{"https://example.com/a.xml", " ", "https://example.com/b.xml"},
		SecretsFromEnv: true,
	})
	if strings.Contains(content, "your_") {
		t.Fatalf("placeholders should be blanked: %s", content)
	}

	path := filepath.Join(t.TempDir(), "seeded.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seeded sample: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("load seeded sample: %v", err)
	}
	if cfg.Jellyfin.URL != "http://media.lan:8096" {
		t.Fatalf("jellyfin url = %q", cfg.Jellyfin.URL)
	}
	if len(cfg.Feeds.URLs) != 2 || cfg.Feeds.URLs[1] != "https://example.com/b.xml" {
		t.Fatalf("feeds = %v", cfg.Feeds.URLs)
	}
	if cfg.Jellyfin.APIKey != "from-env" || cfg.Jellyfin.UserID != "user-env" || cfg.TMDB.APIKey != "tmdb-env" {
		t.Fatalf("secrets should come from the environment: %+v %+v", cfg.Jellyfin, cfg.TMDB)
	}

	env := config.EnvTemplate()
	for _, name := range config.SecretEnvVars {
		if !strings.Contains(env, name+"=\n") {
			t.Fatalf("env template missing %s: %s", name, env)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"no catalog source", func(c *config.Config) { c.TMDB.APIKey = "" }, "no catalog source"},
		{"bad feed url", func(c *config.Config) { c.Feeds.URLs = []string{"not a url"} }, "feeds.urls"},
		{"zero attempts", func(c *config.Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"shrinking backoff", func(c *config.Config) { c.Retry.BackoffFactor = 0.5 }, "retry.backoff_factor"},
		{"zero concurrency", func(c *config.Config) { c.Pipeline.Concurrency = 0 }, "pipeline.concurrency"},
		{"bad backend", func(c *config.Config) { c.Freshness.Backend = "mongo" }, "freshness.backend"},
		{"redis without url", func(c *config.Config) { c.Freshness.Backend = "redis" }, "freshness.redis_url"},
		{"zero window", func(c *config.Config) { c.Freshness.RecommendationWindowDays = 0 }, "recommendation_window_days"},
		{"bad cron", func(c *config.Config) { c.Schedule.Cron = "every hour" }, "schedule.cron"},
		{"unknown group", func(c *config.Config) {
			c.Email.RecipientGroups = map[string][]string{"toddler": {"a@example.com"}}
		}, "unknown category"},
		{"email without server", func(c *config.Config) {
			c.Email.Enabled = true
			c.Email.Sender = "me@example.com"
			c.Email.DefaultRecipients = []string{"you@example.com"}
		}, "email.smtp_server"},
		{"email without recipients", func(c *config.Config) {
			c.Email.Enabled = true
			c.Email.SMTPServer = "smtp.example.com"
			c.Email.Sender = "me@example.com"
		}, "at least one address"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative log retention", func(c *config.Config) { c.Logging.RetentionDays = -1 }, "logging.retention_days"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "data", "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
