package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Jellyfin contains configuration for the Jellyfin library source.
type Jellyfin struct {
	URL       string   `toml:"url"`
	APIKey    string   `toml:"api_key"`
	UserID    string   `toml:"user_id"`
	ItemTypes []string `toml:"item_types"`
}

// TMDB contains configuration for The Movie Database catalog source.
type TMDB struct {
	APIKey              string  `toml:"api_key"`
	BaseURL             string  `toml:"base_url"`
	Language            string  `toml:"language"`
	Region              string  `toml:"region"`
	Releases            bool    `toml:"releases"`
	Recommendations     bool    `toml:"recommendations"`
	RecommendationLimit int     `toml:"recommendation_limit"`
	RequestsPerSecond   float64 `toml:"requests_per_second"`
	RequestTimeout      int     `toml:"request_timeout"`
}

// Feeds contains RSS/Atom release feeds matched against library titles.
type Feeds struct {
	URLs     []string `toml:"urls"`
	MaxItems int      `toml:"max_items"`
}

// Email contains SMTP delivery settings. RecipientGroups maps a classification
// category (all_ages, teen, adult, unclassified) to its recipients.
type Email struct {
	Enabled           bool                `toml:"enabled"`
	SMTPServer        string              `toml:"smtp_server"`
	SMTPPort          int                 `toml:"smtp_port"`
	Sender            string              `toml:"sender"`
	Username          string              `toml:"username"`
	Password          string              `toml:"password"`
	Subject           string              `toml:"subject"`
	DefaultRecipients []string            `toml:"default_recipients"`
	RecipientGroups   map[string][]string `toml:"recipient_groups"`
}

// Ntfy contains configuration for ntfy push notifications.
type Ntfy struct {
	Topic          string `toml:"topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Freshness contains dedup store settings.
type Freshness struct {
	Backend                  string `toml:"backend"`
	DBPath                   string `toml:"db_path"`
	RedisURL                 string `toml:"redis_url"`
	RedisPrefix              string `toml:"redis_prefix"`
	RecommendationWindowDays int    `toml:"recommendation_window_days"`
	FetchCache               bool   `toml:"fetch_cache"`
	FetchWindowHours         int    `toml:"fetch_window_hours"`
}

// Retry contains the backoff policy applied to every external call.
type Retry struct {
	MaxAttempts         int     `toml:"max_attempts"`
	InitialDelaySeconds float64 `toml:"initial_delay_seconds"`
	BackoffFactor       float64 `toml:"backoff_factor"`
	MaxDelaySeconds     float64 `toml:"max_delay_seconds"`
}

// Pipeline contains run-level tuning.
type Pipeline struct {
	Concurrency int `toml:"concurrency"`
}

// Schedule contains daemon scheduling settings.
type Schedule struct {
	Cron       string `toml:"cron"`
	RunTimeout int    `toml:"run_timeout"`
	LockPath   string `toml:"lock_path"`
}

// Metrics contains Prometheus textfile export settings.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`

	// RetentionDays is how many daily log files are kept; 0 keeps them all.
	RetentionDays int `toml:"retention_days"`
}

// Config encapsulates all configuration values for mediawatch.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Jellyfin: library source
//   - TMDB, Feeds: catalog sources
//   - Email, Ntfy: digest delivery
//   - Freshness: dedup store backend and cache windows
//   - Retry: backoff policy for external calls
//   - Pipeline: fan-out limits
//   - Schedule: daemon cron expression, run timeout, and lock file
//   - Metrics: Prometheus textfile export
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Jellyfin  Jellyfin  `toml:"jellyfin"`
	TMDB      TMDB      `toml:"tmdb"`
	Feeds     Feeds     `toml:"feeds"`
	Email     Email     `toml:"email"`
	Ntfy      Ntfy      `toml:"ntfy"`
	Freshness Freshness `toml:"freshness"`
	Retry     Retry     `toml:"retry"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Schedule  Schedule  `toml:"schedule"`
	Metrics   Metrics   `toml:"metrics"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediawatch.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RecommendationWindow is the freshness window for recommendation facts.
func (c *Config) RecommendationWindow() time.Duration {
	return time.Duration(c.Freshness.RecommendationWindowDays) * 24 * time.Hour
}

// FetchWindow is the freshness window for cached catalog fetches.
func (c *Config) FetchWindow() time.Duration {
	return time.Duration(c.Freshness.FetchWindowHours) * time.Hour
}

// RetryInitialDelay converts the configured initial backoff delay.
func (c *Config) RetryInitialDelay() time.Duration {
	return seconds(c.Retry.InitialDelaySeconds)
}

// RetryMaxDelay converts the configured backoff cap. Zero means uncapped.
func (c *Config) RetryMaxDelay() time.Duration {
	return seconds(c.Retry.MaxDelaySeconds)
}

// RunTimeout bounds a single scheduled run.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Schedule.RunTimeout) * time.Second
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
