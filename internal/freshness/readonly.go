package freshness

import "context"

// readOnly answers queries from the wrapped store and discards writes.
type readOnly struct {
	Store
}

// ReadOnly wraps store so RecordSeen is a no-op. Used for dry runs.
func ReadOnly(store Store) Store {
	return readOnly{Store: store}
}

func (readOnly) RecordSeen(context.Context, Record, Category) error {
	return nil
}
