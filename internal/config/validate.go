package config

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"slices"

	"github.com/robfig/cron/v3"
)

// DigestCategories lists the recipient group keys accepted in email.recipient_groups.
var DigestCategories = []string{"all_ages", "teen", "adult", "unclassified"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateJellyfin(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	if err := c.validateFreshness(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"pipeline.concurrency": c.Pipeline.Concurrency,
		"tmdb.request_timeout": c.TMDB.RequestTimeout,
		"ntfy.request_timeout": c.Ntfy.RequestTimeout,
	}); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func (c *Config) validateJellyfin() error {
	hint := configHint()
	if c.Jellyfin.URL == "" {
		return fmt.Errorf("jellyfin.url is required. Set JELLYFIN_URL env var or edit %s", hint)
	}
	if _, err := url.ParseRequestURI(c.Jellyfin.URL); err != nil {
		return fmt.Errorf("jellyfin.url: %w", err)
	}
	if c.Jellyfin.APIKey == "" {
		return fmt.Errorf("jellyfin.api_key is required. Set JELLYFIN_API_KEY env var or edit %s", hint)
	}
	if c.Jellyfin.UserID == "" {
		return fmt.Errorf("jellyfin.user_id is required. Set JELLYFIN_USER_ID env var or edit %s", hint)
	}
	return nil
}

func (c *Config) validateCatalog() error {
	tmdbEnabled := c.TMDB.APIKey != "" && (c.TMDB.Releases || c.TMDB.Recommendations)
	if !tmdbEnabled && len(c.Feeds.URLs) == 0 {
		return fmt.Errorf("no catalog source configured: set tmdb.api_key (or TMDB_API_KEY) or feeds.urls in %s", configHint())
	}
	if c.TMDB.RequestsPerSecond < 0 {
		return errors.New("tmdb.requests_per_second must not be negative")
	}
	if c.TMDB.RecommendationLimit < 0 {
		return errors.New("tmdb.recommendation_limit must not be negative")
	}
	for _, raw := range c.Feeds.URLs {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("feeds.urls: %q: %w", raw, err)
		}
	}
	return nil
}

func (c *Config) validateEmail() error {
	for key := range c.Email.RecipientGroups {
		if !slices.Contains(DigestCategories, key) {
			return fmt.Errorf("email.recipient_groups: unknown category %q (want one of %v)", key, DigestCategories)
		}
	}
	if !c.Email.Enabled {
		return nil
	}
	if c.Email.SMTPServer == "" {
		return errors.New("email.smtp_server must be set when email.enabled is true")
	}
	if c.Email.SMTPPort <= 0 || c.Email.SMTPPort > 65535 {
		return fmt.Errorf("email.smtp_port out of range: %d", c.Email.SMTPPort)
	}
	if _, err := mail.ParseAddress(c.Email.Sender); err != nil {
		return fmt.Errorf("email.sender: %w", err)
	}
	recipients := len(c.Email.DefaultRecipients)
	for _, group := range c.Email.RecipientGroups {
		recipients += len(group)
	}
	if recipients == 0 {
		return errors.New("email.default_recipients or email.recipient_groups must list at least one address")
	}
	return nil
}

func (c *Config) validateFreshness() error {
	switch c.Freshness.Backend {
	case "sqlite":
		if c.Freshness.DBPath == "" {
			return errors.New("freshness.db_path must be set for the sqlite backend")
		}
	case "redis":
		if c.Freshness.RedisURL == "" {
			return errors.New("freshness.redis_url (or REDIS_URL) must be set for the redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("freshness.backend: unsupported value %q", c.Freshness.Backend)
	}
	if c.Freshness.RecommendationWindowDays <= 0 {
		return errors.New("freshness.recommendation_window_days must be positive")
	}
	if c.Freshness.FetchCache && c.Freshness.FetchWindowHours <= 0 {
		return errors.New("freshness.fetch_window_hours must be positive when fetch_cache is enabled")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.InitialDelaySeconds < 0 {
		return errors.New("retry.initial_delay_seconds must not be negative")
	}
	if c.Retry.BackoffFactor < 1 {
		return errors.New("retry.backoff_factor must be at least 1")
	}
	if c.Retry.MaxDelaySeconds < 0 {
		return errors.New("retry.max_delay_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron: %w", err)
	}
	if c.Schedule.RunTimeout <= 0 {
		return errors.New("schedule.run_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func configHint() string {
	path, err := DefaultConfigPath()
	if err != nil {
		path = defaultConfigPath
	}
	return fmt.Sprintf("%s (create with 'mediawatch config init')", path)
}
