package classify

import "time"

// Digest is the classified batch handed to notifiers at the end of a run.
type Digest struct {
	RunID       string
	GeneratedAt time.Time
	Buckets     Buckets
}

// Empty reports whether the digest has nothing to deliver.
func (d Digest) Empty() bool {
	return d.Buckets.Total() == 0
}
