package catalog

import (
	"context"

	"mediawatch/internal/media"
)

// Source produces candidate facts for a library subject.
type Source interface {
	Name() string
	ListCandidates(ctx context.Context, subject media.Subject) ([]media.CandidateFact, error)
}

// RunStarter is implemented by sources that keep per-run caches, such as the
// TMDB now-playing list. The pipeline calls BeginRun before fanning out.
type RunStarter interface {
	BeginRun()
}

// BeginRun resets per-run state on src when it supports it.
func BeginRun(src Source) {
	if starter, ok := src.(RunStarter); ok {
		starter.BeginRun()
	}
}
