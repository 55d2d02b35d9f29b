package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tendant/dailyhome/pkg/domain"
)

// DefaultPasswordMinLength is the minimum accepted at signup when no policy is configured.
const DefaultPasswordMinLength = 6

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

type charClasses struct {
	upper, lower, number, special bool
}

func classify(password string) charClasses {
	var c charClasses
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r):
			c.number = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			c.special = true
		}
	}
	return c
}

// ValidatePassword checks a password against the policy. The error lists
// every unmet requirement.
func (p PasswordPolicy) ValidatePassword(password string) error {
	var missing []string
	if p.MinLength > 0 && utf8.RuneCountInString(password) < p.MinLength {
		missing = append(missing, fmt.Sprintf("at least %d characters", p.MinLength))
	}

	c := classify(password)
	if p.RequireUppercase && !c.upper {
		missing = append(missing, "one uppercase letter")
	}
	if p.RequireLowercase && !c.lower {
		missing = append(missing, "one lowercase letter")
	}
	if p.RequireNumber && !c.number {
		missing = append(missing, "one number")
	}
	if p.RequireSpecial && !c.special {
		missing = append(missing, "one special character")
	}

	if len(missing) == 0 {
		return nil
	}
	return domain.Invalid("password must contain " + strings.Join(missing, ", "))
}
