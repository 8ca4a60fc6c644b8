package preflight

import (
	"context"

	"mediawatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckJellyfin(ctx, cfg.Jellyfin.URL, cfg.Jellyfin.APIKey),
	}

	if cfg.TMDB.APIKey != "" && (cfg.TMDB.Releases || cfg.TMDB.Recommendations) {
		results = append(results, CheckTMDB(ctx, cfg.TMDB.BaseURL, cfg.TMDB.APIKey))
	}
	for _, feedURL := range cfg.Feeds.URLs {
		results = append(results, CheckFeed(ctx, feedURL))
	}

	results = append(results, CheckFreshness(ctx, cfg))

	if cfg.Email.Enabled {
		results = append(results, CheckSMTP(ctx, cfg.Email.SMTPServer, cfg.Email.SMTPPort))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
