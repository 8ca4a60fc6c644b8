package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediawatch/internal/classify"
	"mediawatch/internal/media"
)

func TestCategoryForTable(t *testing.T) {
	tests := []struct {
		rating string
		want   classify.Category
	}{
		{"G", classify.AllAges},
		{"pg", classify.AllAges},
		{" TV-Y7 ", classify.AllAges},
		{"tv pg", classify.AllAges},
		{"PG-13", classify.Teen},
		{"pg 13", classify.Teen},
		{"TV-14", classify.Teen},
		{"tv - 14", classify.Teen},
		{"R", classify.Adult},
		{"nc-17", classify.Adult},
		{"TV-MA", classify.Adult},
		{"", classify.Unclassified},
		{"NR", classify.Unclassified},
		{"FSK 12", classify.Unclassified},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify.CategoryFor(tt.rating), "rating %q", tt.rating)
	}
}

func TestClassifyIsTotal(t *testing.T) {
	facts := []media.CandidateFact{
		{SubjectID: "1", Key: "a", Rating: "PG-13"},
		{SubjectID: "2", Key: "b"},
		{SubjectID: "3", Key: "c", Rating: "not-a-rating"},
		{SubjectID: "4", Key: "d", Rating: "G"},
		{SubjectID: "5", Key: "e", Rating: "R"},
		{SubjectID: "6", Key: "f", Rating: "TV-14"},
	}
	buckets := classify.Classify(facts)

	require.Equal(t, len(facts), buckets.Total())
	seen := map[string]int{}
	for _, group := range buckets.Ordered() {
		for _, f := range group.Facts {
			seen[f.SubjectID]++
		}
	}
	for _, f := range facts {
		assert.Equal(t, 1, seen[f.SubjectID], "fact %s must appear exactly once", f.SubjectID)
	}

	assert.Len(t, buckets[classify.Unclassified], 2)
	assert.Equal(t, "2", buckets[classify.Unclassified][0].SubjectID, "input order preserved")
	assert.Equal(t, map[classify.Category]int{
		classify.AllAges:      1,
		classify.Teen:         2,
		classify.Adult:        1,
		classify.Unclassified: 2,
	}, buckets.Counts())
}

func TestClassifyDoesNotMutateInput(t *testing.T) {
	facts := []media.CandidateFact{{SubjectID: "1", Rating: " pg-13 "}}
	classify.Classify(facts)
	assert.Equal(t, " pg-13 ", facts[0].Rating)
}

func TestOrderedFollowsRestrictiveness(t *testing.T) {
	buckets := classify.Classify([]media.CandidateFact{
		{SubjectID: "x", Rating: "unknown"},
		{SubjectID: "y", Rating: "R"},
		{SubjectID: "z", Rating: "G"},
	})
	groups := buckets.Ordered()
	require.Len(t, groups, 3)
	assert.Equal(t, classify.AllAges, groups[0].Category)
	assert.Equal(t, classify.Adult, groups[1].Category)
	assert.Equal(t, classify.Unclassified, groups[2].Category)
	assert.True(t, classify.Digest{}.Empty())
}
