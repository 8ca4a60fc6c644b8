package testsupport

import (
	"context"
	"testing"

	"mediawatch/internal/config"
	"mediawatch/internal/freshness"
)

// MustOpenStore opens the SQLite freshness store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...freshness.Option) *freshness.SQLiteStore {
	t.Helper()

	store, err := freshness.OpenSQLite(context.Background(), cfg.Freshness.DBPath, opts...)
	if err != nil {
		t.Fatalf("open freshness store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
