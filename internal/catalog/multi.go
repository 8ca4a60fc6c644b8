package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"mediawatch/internal/logging"
	"mediawatch/internal/media"
	"mediawatch/internal/services"
)

// Multi merges facts from several sources. A failing source is logged and
// skipped as long as another source answered. Fatal errors always propagate.
type Multi struct {
	sources []Source
	logger  *slog.Logger
}

// NewMulti combines sources. Nil entries are ignored.
func NewMulti(logger *slog.Logger, sources ...Source) *Multi {
	m := &Multi{logger: logging.NewComponentLogger(logger, "catalog")}
	for _, src := range sources {
		if src != nil {
			m.sources = append(m.sources, src)
		}
	}
	return m
}

// Name joins the member names, e.g. "tmdb+feed". It keys the fetch cache.
func (m *Multi) Name() string {
	names := make([]string, 0, len(m.sources))
	for _, src := range m.sources {
		names = append(names, src.Name())
	}
	return strings.Join(names, "+")
}

// Len reports how many sources are configured.
func (m *Multi) Len() int {
	return len(m.sources)
}

func (m *Multi) BeginRun() {
	for _, src := range m.sources {
		BeginRun(src)
	}
}

func (m *Multi) ListCandidates(ctx context.Context, subject media.Subject) ([]media.CandidateFact, error) {
	if len(m.sources) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "fetch_candidates", "catalog", "no catalog sources configured", nil)
	}
	var (
		facts    []media.CandidateFact
		failures []error
	)
	for _, src := range m.sources {
		got, err := src.ListCandidates(ctx, subject)
		if err != nil {
			if services.IsFatal(err) || ctx.Err() != nil {
				return nil, err
			}
			failures = append(failures, err)
			logging.WarnWithContext(logging.WithContext(ctx, m.logger), "catalog source failed", "catalog_source_failed",
				logging.String(logging.FieldSource, src.Name()),
				logging.String(logging.FieldSubjectID, subject.ID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check network connectivity and API credentials for this source"),
				logging.String(logging.FieldImpact, "facts from this source are missing for the subject"),
			)
			continue
		}
		facts = append(facts, got...)
	}
	if len(failures) == len(m.sources) {
		return nil, allFailed(failures)
	}
	return facts, nil
}

func allFailed(failures []error) error {
	joined := errors.Join(failures...)
	for _, err := range failures {
		if !errors.Is(err, services.ErrNotFound) {
			return services.Wrap(services.ErrTransient, "fetch_candidates", "catalog", "all sources failed", joined)
		}
	}
	return services.Wrap(services.ErrNotFound, "fetch_candidates", "catalog", "no source knows the subject", joined)
}
