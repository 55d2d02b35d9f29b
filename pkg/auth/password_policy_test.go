package auth

import (
	"testing"

	"github.com/tendant/dailyhome/pkg/domain"
)

func TestPasswordPolicy_ValidatePassword(t *testing.T) {
	strong := PasswordPolicy{
		MinLength:        12,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
		RequireSpecial:   true,
	}

	tests := []struct {
		name     string
		policy   PasswordPolicy
		password string
		wantMsg  string
	}{
		{
			name:     "no requirements",
			policy:   PasswordPolicy{},
			password: "a",
		},
		{
			name:     "default minimum met",
			policy:   PasswordPolicy{MinLength: DefaultPasswordMinLength},
			password: "123456",
		},
		{
			name:     "default minimum missed",
			policy:   PasswordPolicy{MinLength: DefaultPasswordMinLength},
			password: "12345",
			wantMsg:  "password must contain at least 6 characters",
		},
		{
			name:     "length counts runes",
			policy:   PasswordPolicy{MinLength: 4},
			password: "ñññ",
			wantMsg:  "password must contain at least 4 characters",
		},
		{
			name:     "uppercase missing",
			policy:   PasswordPolicy{RequireUppercase: true},
			password: "password",
			wantMsg:  "password must contain one uppercase letter",
		},
		{
			name:     "special satisfied by punctuation",
			policy:   PasswordPolicy{RequireSpecial: true},
			password: "Password!",
		},
		{
			name:     "all requirements met",
			policy:   strong,
			password: "StrongPass123!",
		},
		{
			name:     "several requirements missed",
			policy:   strong,
			password: "weak",
			wantMsg:  "password must contain at least 12 characters, one uppercase letter, one number, one special character",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.ValidatePassword(tt.password)
			if tt.wantMsg == "" {
				if err != nil {
					t.Errorf("ValidatePassword() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidatePassword() error = nil, want %q", tt.wantMsg)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("ValidatePassword() error = %q, want %q", err.Error(), tt.wantMsg)
			}
			if domain.KindOf(err) != domain.KindInvalid {
				t.Errorf("KindOf() = %v, want %v", domain.KindOf(err), domain.KindInvalid)
			}
		})
	}
}
