package auth

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/opencampus/registrar/pkg/domain"
)

// handlePattern allows 3-30 characters, alphanumeric plus underscore and
// hyphen, starting with an alphanumeric.
var handlePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{2,29}$`)

// ValidateHandle checks a principal handle's format.
func ValidateHandle(handle string) error {
	if !handlePattern.MatchString(handle) {
		return domain.ErrInvalidHandle
	}
	return nil
}

// SanitizeName sanitizes a display-name field.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = removeControlChars(name)
	return html.EscapeString(name)
}

// removeControlChars removes control characters except newline and tab.
func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
