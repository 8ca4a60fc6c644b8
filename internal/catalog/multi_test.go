package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediawatch/internal/catalog"
	"mediawatch/internal/media"
	"mediawatch/internal/services"
)

type stubSource struct {
	name   string
	facts  []media.CandidateFact
	err    error
	begins int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) ListCandidates(context.Context, media.Subject) ([]media.CandidateFact, error) {
	return s.facts, s.err
}

func (s *stubSource) BeginRun() { s.begins++ }

func TestMultiMergesSources(t *testing.T) {
	a := &stubSource{name: "tmdb", facts: []media.CandidateFact{{Key: "2024-05-01"}}}
	b := &stubSource{name: "feed", facts: []media.CandidateFact{{Key: "guid-1"}}}
	multi := catalog.NewMulti(nil, a, nil, b)

	facts, err := multi.ListCandidates(context.Background(), media.Subject{ID: "1"})
	require.NoError(t, err)
	assert.Len(t, facts, 2)
	assert.Equal(t, "tmdb+feed", multi.Name())
	assert.Equal(t, 2, multi.Len())

	catalog.BeginRun(multi)
	assert.Equal(t, 1, a.begins)
	assert.Equal(t, 1, b.begins)
}

func TestMultiToleratesPartialFailure(t *testing.T) {
	ok := &stubSource{name: "tmdb", facts: []media.CandidateFact{{Key: "k"}}}
	bad := &stubSource{name: "feed", err: services.Wrap(services.ErrTransient, "fetch_candidates", "feed", "", nil)}

	facts, err := catalog.NewMulti(nil, ok, bad).ListCandidates(context.Background(), media.Subject{ID: "1"})
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestMultiFailsWhenAllSourcesFail(t *testing.T) {
	a := &stubSource{name: "a", err: errors.New("reset")}
	b := &stubSource{name: "b", err: services.Wrap(services.ErrNotFound, "", "", "", nil)}

	_, err := catalog.NewMulti(nil, a, b).ListCandidates(context.Background(), media.Subject{ID: "1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrTransient)
}

func TestMultiPropagatesFatal(t *testing.T) {
	fatal := &stubSource{name: "tmdb", err: services.Wrap(services.ErrFatal, "", "tmdb", "http 401", nil)}
	ok := &stubSource{name: "feed", facts: []media.CandidateFact{{Key: "k"}}}

	_, err := catalog.NewMulti(nil, fatal, ok).ListCandidates(context.Background(), media.Subject{ID: "1"})
	assert.ErrorIs(t, err, services.ErrFatal)
}

func TestMultiWithoutSourcesIsConfigurationError(t *testing.T) {
	_, err := catalog.NewMulti(nil).ListCandidates(context.Background(), media.Subject{ID: "1"})
	assert.True(t, services.IsFatal(err))
}
