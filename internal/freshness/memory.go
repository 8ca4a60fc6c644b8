package freshness

import (
	"context"
	"maps"
	"slices"
	"sync"
)

type pairKey struct {
	subjectID string
	factKey   string
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	opts    options
	records []Record
	byPair  map[pairKey][]int
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:   buildOptions(opts),
		byPair: make(map[pairKey][]int),
	}
}

func (m *MemoryStore) WasSeen(ctx context.Context, subjectID, factKey string, category Category) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.liveLocked(pairKey{subjectID, factKey}, category), nil
}

func (m *MemoryStore) liveLocked(key pairKey, category Category) bool {
	indexes := m.byPair[key]
	if len(indexes) == 0 {
		return false
	}
	latest := m.records[indexes[0]].RecordedAt
	for _, idx := range indexes[1:] {
		latest = newest(latest, m.records[idx].RecordedAt)
	}
	return category.Live(latest, m.opts.now())
}

func (m *MemoryStore) RecordSeen(ctx context.Context, rec Record, category Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecord(rec); err != nil {
		return err
	}
	key := pairKey{rec.SubjectID, rec.FactKey}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.liveLocked(key, category) {
		return conflictError(rec.SubjectID, rec.FactKey, category)
	}
	rec.Category = category.Name
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = m.opts.now().UTC()
	}
	rec.Attributes = maps.Clone(rec.Attributes)
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	m.byPair[key] = append(m.byPair[key], len(m.records)-1)
	return nil
}

func (m *MemoryStore) History(ctx context.Context, filter HistoryFilter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range slices.Backward(m.records) {
		if !filter.matches(rec) {
			continue
		}
		rec.Attributes = maps.Clone(rec.Attributes)
		out = append(out, rec)
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		return b.RecordedAt.Compare(a.RecordedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
