// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/nearby-market/internal/i18n"
)

var languageAliases = map[string]string{
	"zh-tw":   "zh_TW",
	"zh-hant": "zh_TW",
	"zh":      "zh_TW",
	"en-us":   "en",
	"en-gb":   "en",
}

// I18nMiddleware stores the first supported language from Accept-Language
// under "lang", falling back to defaultLang. Any loaded locale is matched by
// its own name, so adding a locale file needs no alias.
func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := defaultLang
		if found, ok := negotiateLanguage(c.GetHeader("Accept-Language"), i18n.GetSupportedLanguages()); ok {
			lang = found
		}

		c.Set("lang", lang)
		c.Next()
	}
}

// negotiateLanguage walks a header like "zh-TW,zh;q=0.9,en;q=0.8" in order.
// A region the locales lack falls back to its base language.
func negotiateLanguage(header string, supported []string) (string, bool) {
	match := func(tag string) (string, bool) {
		if known, ok := languageAliases[tag]; ok {
			return known, true
		}
		for _, lang := range supported {
			if strings.EqualFold(strings.ReplaceAll(lang, "_", "-"), tag) {
				return lang, true
			}
		}
		return "", false
	}

	for _, part := range strings.Split(header, ",") {
		tag := strings.ToLower(strings.TrimSpace(strings.Split(part, ";")[0]))
		tag = strings.ReplaceAll(tag, "_", "-")
		if tag == "" {
			continue
		}
		if lang, ok := match(tag); ok {
			return lang, true
		}
		if base, _, found := strings.Cut(tag, "-"); found {
			if lang, ok := match(base); ok {
				return lang, true
			}
		}
	}
	return "", false
}
