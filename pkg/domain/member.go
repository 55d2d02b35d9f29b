package domain

import (
	"time"

	"github.com/google/uuid"
)

// Member is the per-(user, mess) projection read by reporting. IsActive
// mirrors the mess member entry; Name is copied when the record is written
// and not kept in sync with renames.
type Member struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	MessID    uuid.UUID
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMember creates an active member record.
func NewMember(userID, messID uuid.UUID, name string, now time.Time) *Member {
	return &Member{
		ID:        uuid.New(),
		UserID:    userID,
		MessID:    messID,
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
