package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents the account.
type User struct {
	ID            uuid.UUID
	Email         string
	FullName      string
	PasswordHash  string
	EmailVerified bool
	OTP           *OneTimeCode
	CurrentMessID *uuid.UUID
	IsMessAdmin   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OneTimeCode is the pending email verification state of a user.
type OneTimeCode struct {
	Secret    string
	Counter   uint64
	ExpiresAt time.Time
}

// Expired reports whether the code can no longer be used at now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// InMess returns true if the user currently belongs to a mess.
func (u *User) InMess() bool {
	return u.CurrentMessID != nil
}

// IsAdminOf returns true if the user is the admin of the given mess.
func (u *User) IsAdminOf(messID uuid.UUID) bool {
	return u.IsMessAdmin && u.CurrentMessID != nil && *u.CurrentMessID == messID
}

// EnterMess points the user at a mess.
func (u *User) EnterMess(messID uuid.UUID, admin bool) {
	id := messID
	u.CurrentMessID = &id
	u.IsMessAdmin = admin
}

// ExitMess clears the mess pointer. isMessAdmin is never true without a mess.
func (u *User) ExitMess() {
	u.CurrentMessID = nil
	u.IsMessAdmin = false
}

// UserSummary is the public projection of a user embedded in responses and events.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"fullName"`
	Email    string    `json:"email"`
}

// Summary returns the public fields of the user.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, FullName: u.FullName, Email: u.Email}
}
