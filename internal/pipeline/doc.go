// Package pipeline runs one deduplicating fetch pass.
//
// RunOnce walks six stages in order: fetch the library, fetch candidates per
// subject (bounded fan-out, each call retried independently), filter facts
// already recorded in the freshness store, classify by age rating, persist
// each surviving fact, and hand the digest to the notifier. A fatal error from
// a collaborator aborts the run; transient errors only cost the affected
// subject or fact.
package pipeline
