package freshness_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediawatch/internal/freshness"
)

func openSQLite(t *testing.T, opts ...freshness.Option) *freshness.SQLiteStore {
	t.Helper()
	store, err := freshness.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "freshness.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreContract(t *testing.T) {
	runStoreContract(t, func(t *testing.T, opts ...freshness.Option) freshness.Store {
		return openSQLite(t, opts...)
	})
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "freshness.db")

	first, err := freshness.OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.RecordSeen(ctx, freshness.Record{SubjectID: "1", FactKey: "2024-05-01"}, freshness.Release()))
	require.NoError(t, first.Close())

	second, err := freshness.OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	assert.Equal(t, path, second.Path())

	seen, err := second.WasSeen(ctx, "1", "2024-05-01", freshness.Release())
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSQLiteStoreSeparateHandlesRace(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "freshness.db")
	a, err := freshness.OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	b, err := freshness.OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	errs := make(chan error, 2)
	for _, store := range []*freshness.SQLiteStore{a, b} {
		go func() {
			errs <- store.RecordSeen(ctx, freshness.Record{SubjectID: "1", FactKey: "k"}, freshness.Release())
		}()
	}
	first, second := <-errs, <-errs

	successes := 0
	for _, err := range []error{first, second} {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, freshness.ErrConflict)
	}
	assert.Equal(t, 1, successes)

	history, err := a.History(ctx, freshness.HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSQLiteStoreDefaultsTimestampToClock(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	store := openSQLite(t, freshness.WithClock(func() time.Time { return fixed }))

	require.NoError(t, store.RecordSeen(ctx, freshness.Record{SubjectID: "1", FactKey: "k"}, freshness.Recommendation(time.Hour)))
	history, err := store.History(ctx, freshness.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, fixed.Equal(history[0].RecordedAt))
	assert.Equal(t, map[string]string{}, history[0].Attributes)
}
