// Package classify partitions accepted facts into age-rating buckets.
//
// Classification is a pure lookup: no I/O, no mutation of the input. Ratings
// that are missing or not in the table land in Unclassified so no fact is ever
// dropped.
package classify

import (
	"strings"
	"unicode"

	"mediawatch/internal/media"
)

// Category is an age bucket.
type Category string

const (
	AllAges      Category = "all_ages"
	Teen         Category = "teen"
	Adult        Category = "adult"
	Unclassified Category = "unclassified"
)

// Categories lists every bucket in increasing order of restrictiveness, with
// Unclassified last.
var Categories = []Category{AllAges, Teen, Adult, Unclassified}

var ratingTable = map[string]Category{
	"G":     AllAges,
	"PG":    AllAges,
	"TV-Y":  AllAges,
	"TV-Y7": AllAges,
	"TV-G":  AllAges,
	"TV-PG": AllAges,
	"PG-13": Teen,
	"TV-14": Teen,
	"R":     Adult,
	"NC-17": Adult,
	"TV-MA": Adult,
}

// NormalizeRating canonicalizes case and whitespace, e.g. " pg 13" -> "PG-13".
func NormalizeRating(rating string) string {
	fields := strings.FieldsFunc(strings.ToUpper(rating), func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
	return strings.Join(fields, "-")
}

// CategoryFor maps a rating to its bucket.
func CategoryFor(rating string) Category {
	if c, ok := ratingTable[NormalizeRating(rating)]; ok {
		return c
	}
	return Unclassified
}

// Buckets maps each category to its facts in input order.
type Buckets map[Category][]media.CandidateFact

// Classify partitions facts. Every input fact appears in exactly one bucket.
func Classify(facts []media.CandidateFact) Buckets {
	out := make(Buckets, len(Categories))
	for _, fact := range facts {
		c := CategoryFor(fact.Rating)
		out[c] = append(out[c], fact)
	}
	return out
}

// Counts returns the number of facts per non-empty category.
func (b Buckets) Counts() map[Category]int {
	counts := make(map[Category]int, len(b))
	for c, facts := range b {
		if len(facts) > 0 {
			counts[c] = len(facts)
		}
	}
	return counts
}

// Total is the number of facts across all buckets.
func (b Buckets) Total() int {
	n := 0
	for _, facts := range b {
		n += len(facts)
	}
	return n
}

// Ordered yields non-empty buckets in Categories order.
func (b Buckets) Ordered() []Group {
	groups := make([]Group, 0, len(b))
	for _, c := range Categories {
		if facts := b[c]; len(facts) > 0 {
			groups = append(groups, Group{Category: c, Facts: facts})
		}
	}
	return groups
}

// Group is one category with its facts.
type Group struct {
	Category Category
	Facts    []media.CandidateFact
}
