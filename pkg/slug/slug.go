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

// Generate turns a tour name into a URL-friendly slug.
//
//	"The Forest Hiker"   -> "the-forest-hiker"
//	"Côte d'Azur Cruise" -> "cote-d-azur-cruise"
func Generate(name string) string {
	// Decompose accented letters and drop the combining marks.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	s := strings.ToLower(strings.TrimSpace(folded))
	s = strings.NewReplacer("ı", "i", "ß", "ss", "æ", "ae", "ø", "o", "&", " and ").Replace(s)
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
