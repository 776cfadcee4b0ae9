// Package i18n holds localized text values and picks the display language
// for a request.
//
// Every localized field in the site configuration and the legend catalog is
// a mapping from a two-letter language code to its text. A lookup for a
// language the mapping does not carry yields [Undefined] rather than an
// error, so a half-translated catalog still renders.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// Undefined is displayed in place of text missing for the requested language.
const Undefined = "UNDEFINED"

// Text is a single localized string keyed by language code.
type Text map[string]string

// Resolve returns the text for lang, or Undefined.
func (t Text) Resolve(lang string) string {
	if s, ok := t[lang]; ok {
		return s
	}
	return Undefined
}

// Has reports whether t carries non-blank text for lang.
func (t Text) Has(lang string) bool {
	return strings.TrimSpace(t[lang]) != ""
}

// Lines is a localized list of strings keyed by language code. Ramp legend
// entries use it for their per-stop tick labels.
type Lines map[string][]string

// Resolve returns the lines for lang and whether they exist.
func (l Lines) Resolve(lang string) ([]string, bool) {
	lines, ok := l[lang]
	return lines, ok
}

// Matcher negotiates the display language among the configured codes.
// The first configured code is the fallback.
type Matcher struct {
	codes   []string
	matcher language.Matcher
}

// NewMatcher builds a matcher over codes such as ["en", "es"].
func NewMatcher(codes []string) *Matcher {
	if len(codes) == 0 {
		codes = []string{"en"}
	}
	tags := make([]language.Tag, 0, len(codes))
	for _, c := range codes {
		tags = append(tags, language.Make(c))
	}
	return &Matcher{codes: codes, matcher: language.NewMatcher(tags)}
}

// Default returns the fallback language code.
func (m *Matcher) Default() string {
	return m.codes[0]
}

// Supported reports whether code is one of the configured languages.
func (m *Matcher) Supported(code string) bool {
	for _, c := range m.codes {
		if c == code {
			return true
		}
	}
	return false
}

// Match picks a language. An explicit, supported code (a ?lang= query or a
// signal) wins; otherwise the Accept-Language header is matched; otherwise
// the default is used.
func (m *Matcher) Match(explicit, acceptLanguage string) string {
	if code := strings.ToLower(strings.TrimSpace(explicit)); m.Supported(code) {
		return code
	}
	if acceptLanguage == "" {
		return m.Default()
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return m.Default()
	}
	_, idx, conf := m.matcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(m.codes) {
		return m.Default()
	}
	return m.codes[idx]
}
