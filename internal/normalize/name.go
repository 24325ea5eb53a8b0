package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.AmericanEnglish)

// NameFromEmail derives a display name from an email address's local part:
// separators become spaces and each word is capitalized. Returns "" when no
// local part can be found.
func NameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return ""
	}
	local = strings.NewReplacer(".", " ", "_", " ", "-", " ", "+", " ").Replace(local)
	local = whitespaceRe.ReplaceAllString(strings.TrimSpace(local), " ")
	if local == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(local))
}

// TitleWords capitalizes each word of a free-text name.
func TitleWords(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(s))
}
