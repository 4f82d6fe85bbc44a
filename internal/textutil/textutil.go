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

var titleCaser = cases.Title(language.English)

// TitleCase upper-cases the first letter of every word.
func TitleCase(value string) string {
	return titleCaser.String(strings.TrimSpace(value))
}

// Slugify lowercases value, strips diacritics and joins the remaining
// alphanumeric runs with dashes. Apostrophes are dropped without a separator.
func Slugify(value string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), value)
	if err != nil {
		folded = value
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r == '\'' || r == '’':
			continue
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	return b.String()
}

// SlugOr returns Slugify(value), or fallback when nothing survives.
func SlugOr(value, fallback string) string {
	if slug := Slugify(value); slug != "" {
		return slug
	}
	return fallback
}

// Truncate cuts value to at most limit runes.
func Truncate(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(value)
	if len(r) <= limit {
		return value
	}
	return string(r[:limit])
}

// FirstClause returns the text before the first comma, trimmed.
func FirstClause(value string) string {
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}
