package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// letters that do not decompose into a base letter plus a combining mark.
var extraFolds = strings.NewReplacer(
	"ß", "ss", "æ", "ae", "œ", "oe", "ø", "o", "ł", "l", "đ", "d", "ı", "i", "þ", "th",
	"&", " and ",
)

// Generate derives a URL slug from a title: diacritics are stripped, runs of
// anything other than ASCII letters and digits become one hyphen, and leading
// or trailing hyphens are dropped.
//
//	"Café Olé & Sons" -> "cafe-ole-and-sons"
//	"  Zürich   Bäckerei " -> "zurich-backerei"
func Generate(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = extraFolds.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// WithSuffix appends a short disambiguating suffix to base, used when a slug
// is already taken.
func WithSuffix(base, suffix string) string {
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
