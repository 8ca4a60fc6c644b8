// Package daemon runs the mediawatch pipeline on a cron schedule.
//
// A Daemon holds a flock-based lock file for its whole lifetime so only one
// scheduler runs per data directory, and an in-process mutex so a slow run is
// never overlapped by the next tick. Every run is bounded by the configured
// run timeout and, when a metrics registry is attached, followed by a
// textfile export.
//
// Keep pipeline logic out of this package: the daemon only decides when a
// run starts and what happens around it.
package daemon
