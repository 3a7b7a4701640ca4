package repository

import (
	"strings"
	"unicode"

	"catalogue-service/internal/filters"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// GenerateSlug creates a URL-friendly slug from a name ("Côte d'Or" -> "cote-d-or")
func GenerateSlug(name string) string {
	return slugify(name, '-')
}

// GenerateAttributeSlug creates an attribute slug. Attribute slugs use '_' so
// that the first '-' of a filter segment always ends the attribute part.
func GenerateAttributeSlug(name string) string {
	return slugify(name, '_')
}

func slugify(name string, sep rune) string {
	// transformers carry state, so each call builds its own chain
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteRune(sep)
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// ValidAttributeSlug reports whether slug can be used as the attribute part of
// a filter segment. Slugs the codec handles itself are rejected.
func ValidAttributeSlug(slug string) bool {
	return slug != "" && !strings.Contains(slug, filters.Separator) && !filters.IsReserved(slug)
}
