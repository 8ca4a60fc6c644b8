// Package preflight provides readiness checks for the external services and
// filesystem paths mediawatch depends on.
//
// The daemon runs RunAll once at startup and logs every failing check; the
// "mediawatch status" command prints the same results as a table. Checks are
// single attempts with short timeouts and never mutate remote state.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
