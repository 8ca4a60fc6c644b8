package freshness

import (
	"time"

	"mediawatch/internal/media"
)

// Category names a fact category and its freshness window.
type Category struct {
	Name string
	// Window is how long a record stays live. Zero means permanent.
	Window time.Duration
}

// Permanent reports whether records in this category never expire.
func (c Category) Permanent() bool {
	return c.Window <= 0
}

// Live reports whether a record stamped recordedAt is still fresh at now. A
// zero timestamp is never live.
func (c Category) Live(recordedAt, now time.Time) bool {
	if recordedAt.IsZero() {
		return false
	}
	if c.Permanent() {
		return true
	}
	return recordedAt.Add(c.Window).After(now)
}

func (c Category) String() string {
	return c.Name
}

const (
	CategoryRelease        = "release"
	CategoryRecommendation = "recommendation"
	CategoryCatalogFetch   = "catalog_fetch"
)

// Release is the permanent category for release announcements.
func Release() Category {
	return Category{Name: CategoryRelease}
}

// Recommendation is the cache category for recommendations.
func Recommendation(window time.Duration) Category {
	return Category{Name: CategoryRecommendation, Window: window}
}

// CatalogFetch is the cache category that suppresses repeat catalog calls.
func CatalogFetch(window time.Duration) Category {
	return Category{Name: CategoryCatalogFetch, Window: window}
}

// Policy resolves the category for each kind of fact.
type Policy struct {
	Release        Category
	Recommendation Category
	CatalogFetch   Category
}

// NewPolicy builds the standard categories with the configured cache windows.
func NewPolicy(recommendationWindow, fetchWindow time.Duration) Policy {
	return Policy{
		Release:        Release(),
		Recommendation: Recommendation(recommendationWindow),
		CatalogFetch:   CatalogFetch(fetchWindow),
	}
}

// ForFact returns the category a candidate fact is deduplicated under.
func (p Policy) ForFact(kind media.FactKind) Category {
	if kind == media.FactRecommendation {
		return p.Recommendation
	}
	return p.Release
}

// ByName looks up a category by its stored name.
func (p Policy) ByName(name string) (Category, bool) {
	for _, c := range []Category{p.Release, p.Recommendation, p.CatalogFetch} {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
