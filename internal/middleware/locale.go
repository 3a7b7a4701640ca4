package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

// LocaleMiddleware resolves the request locale from ?locale= then
// Accept-Language against the supported locales and stores it as "locale".
// The first supported locale is the default.
func LocaleMiddleware(supported []string) gin.HandlerFunc {
	tags := make([]language.Tag, 0, len(supported))
	for _, s := range supported {
		if tag, err := language.Parse(s); err == nil {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		tags = append(tags, language.English)
	}
	matcher := language.NewMatcher(tags)

	return func(c *gin.Context) {
		c.Set("locale", MatchLocale(matcher, tags, c.Query("locale"), c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// MatchLocale picks the supported tag closest to the query or header preference
func MatchLocale(matcher language.Matcher, tags []language.Tag, query, acceptLanguage string) string {
	var prefs []language.Tag
	if query != "" {
		if tag, err := language.Parse(query); err == nil {
			prefs = append(prefs, tag)
		}
	}
	if header, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil {
		prefs = append(prefs, header...)
	}
	if len(prefs) == 0 {
		return tags[0].String()
	}
	_, index, confidence := matcher.Match(prefs...)
	if confidence == language.No {
		return tags[0].String()
	}
	return tags[index].String()
}

// GetLocale retrieves the resolved locale from gin context
func GetLocale(c *gin.Context) string {
	return c.GetString("locale")
}
