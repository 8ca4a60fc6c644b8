package notifications

import (
	"fmt"
	"strings"

	"mediawatch/internal/classify"
	"mediawatch/internal/textutil"
)

// CategoryBody renders the plain-text email body for one category:
//
//	New Releases (Teen):
//
//	- Dune: Part Two (2024-03-01)
func CategoryBody(group classify.Group) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New Releases (%s):\n\n", textutil.DisplayLabel(string(group.Category)))
	for _, fact := range group.Facts {
		fmt.Fprintf(&b, "- %s (%s)", fact.DisplayTitle(), factDetail(fact.Key))
		if fact.SubjectTitle != "" && !textutil.SameTitle(fact.SubjectTitle, fact.DisplayTitle()) {
			fmt.Fprintf(&b, " [%s]", fact.SubjectTitle)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// factDetail shortens recommendation keys to a readable label.
func factDetail(key string) string {
	if strings.HasPrefix(key, "rec:") {
		return "recommended"
	}
	return key
}

// Summary renders a one-line-per-category overview used for push messages.
func Summary(digest classify.Digest) string {
	var lines []string
	for _, group := range digest.Buckets.Ordered() {
		titles := make([]string, 0, len(group.Facts))
		for _, fact := range group.Facts {
			titles = append(titles, fact.DisplayTitle())
		}
		lines = append(lines, fmt.Sprintf("%s: %s", textutil.DisplayLabel(string(group.Category)), strings.Join(titles, ", ")))
	}
	return strings.Join(lines, "\n")
}
