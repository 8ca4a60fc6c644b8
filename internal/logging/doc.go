// Package logging assembles the slog loggers used across mediawatch.
//
// It owns the console and JSON handlers, tees output to a daily log file in
// the configured log directory (pruned after logging.retention_days), and exposes context helpers so pipeline code can tag
// lines with run IDs, subject IDs, and stage names. A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging
