// Package config loads, normalizes, and validates mediawatch configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY, JELLYFIN_API_KEY, and SMTP_PASSWORD. The Config type
// centralizes every knob the daemon and CLI need so credentials, freshness
// windows, and retry policy are resolved in one pass.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, canonical log formats, and clear validation errors.
package config
