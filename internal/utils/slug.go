package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s, folds accents and joins the remaining alphanumerics with "-".
// Example: "Seminar 2 – Über" -> "seminar-2-uber"
func Slug(s string) string {
	decomposed := norm.NFKD.String(strings.ToLower(strings.TrimSpace(s)))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.Trim(nonSlugChars.ReplaceAllString(b.String(), "-"), "-")
	if out == "" {
		return "untitled"
	}
	return out
}
