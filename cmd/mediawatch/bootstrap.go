package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mediawatch/internal/catalog"
	"mediawatch/internal/catalog/feed"
	"mediawatch/internal/catalog/tmdb"
	"mediawatch/internal/config"
	"mediawatch/internal/freshness"
	"mediawatch/internal/library/jellyfin"
	"mediawatch/internal/metrics"
	"mediawatch/internal/notifications"
	"mediawatch/internal/pipeline"
	"mediawatch/internal/retry"
)

// app bundles the long-lived collaborators of a pipeline.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    freshness.Store
	metrics  *metrics.Registry
	pipeline *pipeline.Pipeline
}

type appOptions struct {
	// dryRun discards freshness writes and replaces the notifiers with noop.
	dryRun bool
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	library, err := jellyfin.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("jellyfin: %w", err)
	}
	source, err := buildCatalog(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := freshness.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open freshness store: %w", err)
	}

	notifier := notifications.NewService(cfg, logger)
	pipelineStore := store
	if opts.dryRun {
		pipelineStore = freshness.ReadOnly(store)
		notifier = notifications.Noop()
	}

	reg := metrics.New()
	executor := retry.New(retryPolicy(cfg), retry.WithObserver(retry.MultiObserver{
		retry.NewLogObserver(logger),
		reg.RetryObserver(),
	}))

	p := pipeline.New(library, source, pipelineStore, notifier, executor,
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithPolicy(freshnessPolicy(cfg)),
		pipeline.WithFetchCache(cfg.Freshness.FetchCache),
		pipeline.WithLogger(logger),
	)
	return &app{cfg: cfg, logger: logger, store: store, metrics: reg, pipeline: p}, nil
}

func (a *app) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.Close()
}

// buildCatalog composes every enabled catalog source. A single source is used
// directly so its name keys the fetch cache.
func buildCatalog(cfg *config.Config, logger *slog.Logger) (catalog.Source, error) {
	var sources []catalog.Source
	if cfg.TMDB.APIKey != "" && (cfg.TMDB.Releases || cfg.TMDB.Recommendations) {
		src, err := tmdb.NewSourceFromConfig(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("tmdb: %w", err)
		}
		sources = append(sources, src)
	}
	if len(cfg.Feeds.URLs) > 0 {
		client := &http.Client{Timeout: time.Duration(cfg.TMDB.RequestTimeout) * time.Second}
		sources = append(sources, feed.New(cfg.Feeds.URLs, cfg.Feeds.MaxItems, feed.WithHTTPClient(client), feed.WithLogger(logger)))
	}
	switch len(sources) {
	case 0:
		return nil, errors.New("no catalog source configured")
	case 1:
		return sources[0], nil
	default:
		return catalog.NewMulti(logger, sources...), nil
	}
}

func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts:   cfg.Retry.MaxAttempts,
		InitialDelay:  cfg.RetryInitialDelay(),
		BackoffFactor: cfg.Retry.BackoffFactor,
		MaxDelay:      cfg.RetryMaxDelay(),
	}
}

func freshnessPolicy(cfg *config.Config) freshness.Policy {
	return freshness.NewPolicy(cfg.RecommendationWindow(), cfg.FetchWindow())
}
