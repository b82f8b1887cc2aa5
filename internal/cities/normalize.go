package cities

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var cityTitle = cases.Title(language.English)

// Fold lowercases s, strips diacritics and collapses whitespace so that
// "Kyōto", " KYOTO " and "kyoto" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// containsWord reports whether keyword occurs in text delimited by non-letter runes
func containsWord(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	start := 0
	for {
		idx := strings.Index(text[start:], keyword)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(keyword)
		before := idx == 0 || !isWordByte(text[idx-1])
		after := end == len(text) || !isWordByte(text[end])
		if before && after {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// canonicalUnknown formats a city tag that is not in the catalog
func canonicalUnknown(tag string) string {
	folded := Fold(tag)
	for _, suffix := range []string{"-shi", " city", "-to"} {
		folded = strings.TrimSuffix(folded, suffix)
	}
	return cityTitle.String(folded)
}
