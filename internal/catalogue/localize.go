package catalogue

import (
	"sort"
	"strings"

	"catalogue-service/internal/models"
)

// Localize picks the value for locale, then its base language, then fallback,
// then the first non-empty value in key order.
func Localize(values map[string]string, locale, fallback string) string {
	if v := values[locale]; v != "" {
		return v
	}
	if base, _, found := strings.Cut(locale, "-"); found {
		if v := values[base]; v != "" {
			return v
		}
	}
	if v := values[fallback]; v != "" {
		return v
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if values[k] != "" {
			return values[k]
		}
	}
	return ""
}

// Localizer binds a request locale and the tenant default
type Localizer struct {
	Locale   string
	Fallback string
}

// Name localizes a stored translations column
func (l Localizer) Name(t models.Translations) string {
	return Localize(t.Data(), l.Locale, l.Fallback)
}

// NameOr localizes t and falls back to def when every translation is empty
func (l Localizer) NameOr(t models.Translations, def string) string {
	if v := l.Name(t); v != "" {
		return v
	}
	return def
}
