// Package i18n provides localized user-facing messages for error codes.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Catalog holds user-facing message templates for one locale.
type Catalog struct {
	locale   string
	tag      language.Tag
	messages map[string]string
}

var (
	catalogs = map[string]*Catalog{
		"en-US": enUSCatalog,
	}
	matcher      language.Matcher
	matcherTags  []language.Tag
	tagToCatalog map[language.Tag]*Catalog
)

func init() {
	tagToCatalog = make(map[language.Tag]*Catalog, len(catalogs))
	for _, c := range catalogs {
		c.tag = language.Make(c.locale)
		matcherTags = append(matcherTags, c.tag)
		tagToCatalog[c.tag] = c
	}
	matcher = language.NewMatcher(matcherTags)
}

// GetCatalog returns the best catalog for the requested locale, falling
// back to en-US for unknown locales.
func GetCatalog(locale string) *Catalog {
	if c, ok := catalogs[locale]; ok {
		return c
	}
	desired, err := language.Parse(locale)
	if err != nil {
		return enUSCatalog
	}
	_, idx, conf := matcher.Match(desired)
	if conf == language.No {
		return enUSCatalog
	}
	if c, ok := tagToCatalog[matcherTags[idx]]; ok {
		return c
	}
	return enUSCatalog
}

// Locale returns the catalog's locale identifier.
func (c *Catalog) Locale() string {
	if c == nil {
		return "en-US"
	}
	return c.locale
}

// Format renders the message template for a code, substituting
// {placeholder} tokens from metadata. Unknown codes fall back to a
// generic message so clients never see raw internals.
func (c *Catalog) Format(code string, metadata map[string]string) string {
	if c == nil {
		return genericMessage
	}
	template, ok := c.messages[code]
	if !ok {
		return genericMessage
	}
	if len(metadata) == 0 {
		return template
	}
	out := template
	for key, value := range metadata {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}

const genericMessage = "the request could not be completed"
