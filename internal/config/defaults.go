package config

const (
	defaultConfigPath               = "~/.config/mediawatch/config.toml"
	defaultDataDir                  = "~/.local/share/mediawatch"
	defaultLogDir                   = "~/.local/share/mediawatch/logs"
	defaultDBFileName               = "freshness.db"
	defaultLockFileName             = "mediawatch.lock"
	defaultTMDBLanguage             = "en-US"
	defaultTMDBRegion               = "US"
	defaultTMDBBaseURL              = "https://api.themoviedb.org/3"
	defaultTMDBRequestsPerSecond    = 20
	defaultTMDBRecommendationLimit  = 5
	defaultRequestTimeout           = 10
	defaultSMTPPort                 = 587
	defaultEmailSubject             = "New Media Releases"
	defaultFreshnessBackend         = "sqlite"
	defaultRedisPrefix              = "mediawatch"
	defaultRecommendationWindowDays = 30
	defaultFetchWindowHours         = 24
	defaultRetryMaxAttempts         = 3
	defaultRetryInitialDelaySeconds = 2
	defaultRetryBackoffFactor       = 2
	defaultPipelineConcurrency      = 4
	defaultFeedMaxItems             = 50
	defaultScheduleCron             = "@hourly"
	defaultRunTimeout               = 900
	defaultLogFormat                = "auto"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 14
)

var defaultJellyfinItemTypes = []string{"Movie", "Series"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Jellyfin: Jellyfin{
			ItemTypes: append([]string(nil), defaultJellyfinItemTypes...),
		},
		TMDB: TMDB{
			BaseURL:             defaultTMDBBaseURL,
			Language:            defaultTMDBLanguage,
			Region:              defaultTMDBRegion,
			Releases:            true,
			Recommendations:     true,
			RecommendationLimit: defaultTMDBRecommendationLimit,
			RequestsPerSecond:   defaultTMDBRequestsPerSecond,
			RequestTimeout:      defaultRequestTimeout,
		},
		Feeds: Feeds{
			MaxItems: defaultFeedMaxItems,
		},
		Email: Email{
			SMTPPort: defaultSMTPPort,
			Subject:  defaultEmailSubject,
		},
		Ntfy: Ntfy{
			RequestTimeout: defaultRequestTimeout,
		},
		Freshness: Freshness{
			Backend:                  defaultFreshnessBackend,
			RedisPrefix:              defaultRedisPrefix,
			RecommendationWindowDays: defaultRecommendationWindowDays,
			FetchCache:               true,
			FetchWindowHours:         defaultFetchWindowHours,
		},
		Retry: Retry{
			MaxAttempts:         defaultRetryMaxAttempts,
			InitialDelaySeconds: defaultRetryInitialDelaySeconds,
			BackoffFactor:       defaultRetryBackoffFactor,
		},
		Pipeline: Pipeline{
			Concurrency: defaultPipelineConcurrency,
		},
		Schedule: Schedule{
			Cron:       defaultScheduleCron,
			RunTimeout: defaultRunTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
