// Package main hosts the mediawatch CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration (including an optional .env
// file), builds the library, catalog, freshness store, and notifier from it,
// and hands them to the pipeline. Commands cover one-off runs, the cron
// daemon, notification history, configuration scaffolding, and notifier
// checks.
//
// Keep this package lean: new behavior belongs in the internal packages and
// is only surfaced here through commands or flags.
package main
