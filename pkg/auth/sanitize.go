package auth

import (
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tendant/dailyhome/pkg/domain"
)

// SanitizeInput trims free text, strips control characters and escapes HTML.
func SanitizeInput(input string) string {
	return html.EscapeString(strings.TrimSpace(removeControlChars(input, true)))
}

// SanitizeName cleans a single-line display field such as a person's or a
// mess's name. Line breaks are dropped too.
func SanitizeName(name string) string {
	name = removeControlChars(name, false)
	return html.EscapeString(strings.Join(strings.Fields(name), " "))
}

// ValidateStringLength checks the rune length of a field. A zero bound is not enforced.
func ValidateStringLength(field, value string, min, max int) error {
	length := utf8.RuneCountInString(value)

	if min > 0 && length < min {
		if min == 1 {
			return domain.Invalid(field + " is required")
		}
		return domain.Invalid(fmt.Sprintf("%s must be at least %d characters long", field, min))
	}
	if max > 0 && length > max {
		return domain.Invalid(fmt.Sprintf("%s must be at most %d characters long", field, max))
	}
	return nil
}

func removeControlChars(s string, keepLineBreaks bool) string {
	return strings.Map(func(r rune) rune {
		if keepLineBreaks && (r == '\n' || r == '\r' || r == '\t') {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
