// Package freshness records which (subject, fact) pairs have already been
// surfaced and answers whether a pair is still fresh.
//
// Every backend stores append-only Notification Records. Liveness is computed
// at query time from the newest record's timestamp and the category window:
// permanent categories (releases) never expire, cache categories
// (recommendations, catalog fetches) expire after their window. Nothing is
// swept or deleted; expired rows stay for audit and show up in History.
//
// RecordSeen checks and inserts under one writer lock per backend (an
// IMMEDIATE SQLite transaction, a Redis Lua script, or a mutex), so two
// workers racing on the same pair resolve to one success and one ErrConflict.
// Records with a missing or unparseable timestamp count as expired.
package freshness
