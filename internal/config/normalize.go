package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeJellyfin()
	c.normalizeTMDB()
	c.normalizeFeeds()
	c.normalizeEmail()
	c.normalizeNtfy()
	if err := c.normalizeFreshness(); err != nil {
		return err
	}
	if err := c.normalizeSchedule(); err != nil {
		return err
	}
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeJellyfin() {
	envFallback(&c.Jellyfin.URL, "JELLYFIN_URL")
	envFallback(&c.Jellyfin.APIKey, "JELLYFIN_API_KEY")
	envFallback(&c.Jellyfin.UserID, "JELLYFIN_USER_ID")
	c.Jellyfin.URL = strings.TrimRight(strings.TrimSpace(c.Jellyfin.URL), "/")
	c.Jellyfin.APIKey = strings.TrimSpace(c.Jellyfin.APIKey)
	c.Jellyfin.UserID = strings.TrimSpace(c.Jellyfin.UserID)
	c.Jellyfin.ItemTypes = trimList(c.Jellyfin.ItemTypes)
	if len(c.Jellyfin.ItemTypes) == 0 {
		c.Jellyfin.ItemTypes = append([]string(nil), defaultJellyfinItemTypes...)
	}
}

func (c *Config) normalizeTMDB() {
	envFallback(&c.TMDB.APIKey, "TMDB_API_KEY")
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	if strings.TrimSpace(c.TMDB.Language) == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
	c.TMDB.Region = strings.ToUpper(strings.TrimSpace(c.TMDB.Region))
	if c.TMDB.Region == "" {
		c.TMDB.Region = defaultTMDBRegion
	}
}

func (c *Config) normalizeFeeds() {
	c.Feeds.URLs = trimList(c.Feeds.URLs)
	if c.Feeds.MaxItems <= 0 {
		c.Feeds.MaxItems = defaultFeedMaxItems
	}
}

func (c *Config) normalizeEmail() {
	envFallback(&c.Email.Password, "SMTP_PASSWORD")
	c.Email.SMTPServer = strings.TrimSpace(c.Email.SMTPServer)
	c.Email.Sender = strings.TrimSpace(c.Email.Sender)
	c.Email.Username = strings.TrimSpace(c.Email.Username)
	if c.Email.Username == "" {
		c.Email.Username = c.Email.Sender
	}
	if strings.TrimSpace(c.Email.Subject) == "" {
		c.Email.Subject = defaultEmailSubject
	}
	c.Email.DefaultRecipients = trimList(c.Email.DefaultRecipients)
	if len(c.Email.RecipientGroups) > 0 {
		groups := make(map[string][]string, len(c.Email.RecipientGroups))
		for key, recipients := range c.Email.RecipientGroups {
			groups[strings.ToLower(strings.TrimSpace(key))] = trimList(recipients)
		}
		c.Email.RecipientGroups = groups
	}
}

func (c *Config) normalizeNtfy() {
	envFallback(&c.Ntfy.Topic, "NTFY_TOPIC")
	c.Ntfy.Topic = strings.TrimSpace(c.Ntfy.Topic)
}

func (c *Config) normalizeFreshness() error {
	c.Freshness.Backend = strings.ToLower(strings.TrimSpace(c.Freshness.Backend))
	if c.Freshness.Backend == "" {
		c.Freshness.Backend = defaultFreshnessBackend
	}
	if strings.TrimSpace(c.Freshness.DBPath) == "" {
		c.Freshness.DBPath = filepath.Join(c.Paths.DataDir, defaultDBFileName)
	}
	var err error
	if c.Freshness.DBPath, err = expandPath(c.Freshness.DBPath); err != nil {
		return fmt.Errorf("freshness.db_path: %w", err)
	}
	envFallback(&c.Freshness.RedisURL, "REDIS_URL")
	c.Freshness.RedisURL = strings.TrimSpace(c.Freshness.RedisURL)
	if strings.TrimSpace(c.Freshness.RedisPrefix) == "" {
		c.Freshness.RedisPrefix = defaultRedisPrefix
	}
	return nil
}

func (c *Config) normalizeSchedule() error {
	c.Schedule.Cron = strings.TrimSpace(c.Schedule.Cron)
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = defaultScheduleCron
	}
	if strings.TrimSpace(c.Schedule.LockPath) == "" {
		c.Schedule.LockPath = filepath.Join(c.Paths.DataDir, defaultLockFileName)
	}
	var err error
	if c.Schedule.LockPath, err = expandPath(c.Schedule.LockPath); err != nil {
		return fmt.Errorf("schedule.lock_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeMetrics() error {
	c.Metrics.TextfilePath = strings.TrimSpace(c.Metrics.TextfilePath)
	if c.Metrics.TextfilePath == "" {
		return nil
	}
	var err error
	if c.Metrics.TextfilePath, err = expandPath(c.Metrics.TextfilePath); err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// envFallback fills an empty setting from the named environment variable.
func envFallback(target *string, name string) {
	if strings.TrimSpace(*target) != "" {
		return
	}
	if value, ok := os.LookupEnv(name); ok {
		*target = strings.TrimSpace(value)
	}
}

func trimList(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
