package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var leadingArticles = []string{"the ", "a ", "an "}

// NormalizeTitle returns a comparison key for a title. Empty input yields "".
func NormalizeTitle(title string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		title,
	)
	if err != nil {
		folded = title
	}
	folded = cases.Fold().String(folded)

	var b strings.Builder
	space := true
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			space = false
		case r == '\'' || r == '’':
			// drop apostrophes so "Schindler's" matches "Schindlers"
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	out := strings.TrimSpace(b.String())
	for _, article := range leadingArticles {
		if rest, ok := strings.CutPrefix(out, article); ok && rest != "" {
			return rest
		}
	}
	return out
}

// SameTitle reports whether two titles normalize to the same key.
func SameTitle(a, b string) bool {
	na := NormalizeTitle(a)
	return na != "" && na == NormalizeTitle(b)
}

// ContainsTitle reports whether haystack mentions title as a whole-word phrase
// after normalization.
func ContainsTitle(haystack, title string) bool {
	needle := NormalizeTitle(title)
	if needle == "" {
		return false
	}
	hay := " " + NormalizeTitle(haystack) + " "
	return strings.Contains(hay, " "+needle+" ")
}

// DisplayLabel turns an identifier such as "all_ages" into "All Ages".
func DisplayLabel(value string) string {
	value = strings.TrimSpace(strings.ReplaceAll(value, "_", " "))
	if value == "" {
		return ""
	}
	return cases.Title(language.English).String(value)
}
