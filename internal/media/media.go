// Package media defines the typed payloads exchanged between the library
// source, the catalog sources, and the pipeline.
package media

import (
	"fmt"
	"strings"
)

// Kind distinguishes movies from series.
type Kind string

const (
	KindUnknown Kind = ""
	KindMovie   Kind = "movie"
	KindSeries  Kind = "series"
)

// ParseKind maps library and catalog type names onto a Kind.
func ParseKind(value string) Kind {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "movie", "movies", "film":
		return KindMovie
	case "series", "tv", "show", "tvshow":
		return KindSeries
	default:
		return KindUnknown
	}
}

// Subject is an item in the local library. Subjects are immutable once listed.
type Subject struct {
	ID     string
	Title  string
	Kind   Kind
	Year   int
	TMDBID int64
}

func (s Subject) String() string {
	if s.Year > 0 {
		return fmt.Sprintf("%s (%d)", s.Title, s.Year)
	}
	return s.Title
}

// FactKind separates release announcements from recommendations.
type FactKind string

const (
	FactRelease        FactKind = "release"
	FactRecommendation FactKind = "recommendation"
)

// CandidateFact is an externally sourced assertion about a subject. It lives in
// memory until it is either discarded as a duplicate or persisted.
type CandidateFact struct {
	SubjectID    string   `json:"subject_id"`
	SubjectTitle string   `json:"subject_title"`
	Kind         FactKind `json:"kind"`
	// Key identifies the fact within its subject, e.g. a release date or
	// "rec:movie:603".
	Key    string `json:"key"`
	Title  string `json:"title,omitempty"`
	Rating string `json:"rating,omitempty"`
	// MediaKind is the kind of the recommended or released title.
	MediaKind Kind   `json:"media_kind,omitempty"`
	CatalogID string `json:"catalog_id,omitempty"`
	Source    string `json:"source,omitempty"`
	URL       string `json:"url,omitempty"`
}

// DisplayTitle is the title shown in digests.
func (f CandidateFact) DisplayTitle() string {
	if t := strings.TrimSpace(f.Title); t != "" {
		return t
	}
	return f.SubjectTitle
}

// Attributes flattens the optional fields into the opaque map persisted with a
// notification record.
func (f CandidateFact) Attributes() map[string]string {
	attrs := map[string]string{}
	put := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			attrs[k] = v
		}
	}
	put("title", f.DisplayTitle())
	put("subject_title", f.SubjectTitle)
	put("rating", f.Rating)
	put("media_kind", string(f.MediaKind))
	put("catalog_id", f.CatalogID)
	put("source", f.Source)
	put("url", f.URL)
	return attrs
}
