package auth

import (
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$") {
		t.Errorf("HashPassword() = %q, want argon2id encoding", hash)
	}

	again, _ := HashPassword("correct horse")
	if hash == again {
		t.Error("two hashes of the same password should differ by salt")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{name: "correct password", password: "secret123", hash: hash, want: true},
		{name: "wrong password", password: "secret124", hash: hash, want: false},
		{name: "empty password", password: "", hash: hash, want: false},
		{name: "malformed hash", password: "secret123", hash: "not-a-hash", want: false},
		{name: "bcrypt hash", password: "secret123", hash: "$2a$10$abcdefghijklmnopqrstuv", want: false},
		{name: "bad version", password: "secret123", hash: strings.Replace(hash, "v=19", "v=16", 1), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.password, tt.hash); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}
