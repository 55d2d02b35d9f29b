package auth

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/tendant/dailyhome/pkg/domain"
)

var disposableDomains = map[string]bool{
	"tempmail.com":      true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"throwaway.email":   true,
	"yopmail.com":       true,
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

const maxEmailLength = 254 // RFC 5321

// EmailRules configures email acceptance at signup.
type EmailRules struct {
	// Strict additionally requires a dotted domain and a conservative local part.
	Strict          bool
	BlockDisposable bool
}

// Validate checks the address and returns it normalized.
func (r EmailRules) Validate(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", domain.Invalid("email address is required")
	}
	if len(normalized) > maxEmailLength {
		return "", domain.Invalid("email address is too long")
	}

	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return "", domain.ErrInvalidEmail
	}
	if r.Strict && !emailRegex.MatchString(addr.Address) {
		return "", domain.ErrInvalidEmail
	}
	if r.BlockDisposable && disposableDomains[emailDomain(addr.Address)] {
		return "", domain.Invalid("disposable email addresses are not allowed")
	}
	return normalized, nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func emailDomain(email string) string {
	_, host, found := strings.Cut(email, "@")
	if !found {
		return ""
	}
	return host
}
