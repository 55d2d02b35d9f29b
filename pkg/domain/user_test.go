package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUser_EnterAndExitMess(t *testing.T) {
	user := &User{ID: uuid.New(), Email: "test@example.com"}
	messID := uuid.New()

	if user.InMess() {
		t.Fatal("new user should not be in a mess")
	}

	user.EnterMess(messID, true)
	if !user.InMess() {
		t.Error("InMess() = false after EnterMess")
	}
	if !user.IsAdminOf(messID) {
		t.Error("IsAdminOf() = false for the mess the user administers")
	}
	if user.IsAdminOf(uuid.New()) {
		t.Error("IsAdminOf() = true for an unrelated mess")
	}

	user.ExitMess()
	if user.InMess() {
		t.Error("InMess() = true after ExitMess")
	}
	if user.IsMessAdmin {
		t.Error("IsMessAdmin must be false once the user has no mess")
	}
}

func TestUser_EnterMessCopiesID(t *testing.T) {
	user := &User{ID: uuid.New()}
	messID := uuid.New()
	user.EnterMess(messID, false)

	messID = uuid.New()
	if *user.CurrentMessID == messID {
		t.Error("CurrentMessID should not alias the caller's variable")
	}
}

func TestOneTimeCode_Expired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "future expiry",
			expiresAt: now.Add(time.Minute),
			want:      false,
		},
		{
			name:      "past expiry",
			expiresAt: now.Add(-time.Minute),
			want:      true,
		},
		{
			name:      "expires exactly now",
			expiresAt: now,
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := &OneTimeCode{Secret: "S", ExpiresAt: tt.expiresAt}
			if got := code.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "not found", err: ErrMessNotFound, want: KindNotFound},
		{name: "conflict", err: ErrDuplicatePending, want: KindConflict},
		{name: "forbidden", err: ErrMessAdminRequired, want: KindForbidden},
		{name: "unauthenticated", err: ErrInvalidToken, want: KindUnauthenticated},
		{name: "invalid", err: Invalid("name is required"), want: KindInvalid},
		{name: "wrapped", err: fmt.Errorf("remove member: %w", ErrCannotRemoveAdmin), want: KindConflict},
		{name: "foreign error", err: errors.New("boom"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}
