package mess

import (
	"time"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/pkg/domain"
)

// MessWithAdmin is a mess as found by identifier code.
type MessWithAdmin struct {
	ID             uuid.UUID          `json:"id"`
	Name           string             `json:"name"`
	Address        string             `json:"address"`
	IdentifierCode string             `json:"identifierCode"`
	Admin          domain.UserSummary `json:"admin"`
}

// MemberDetails is one active member of a mess.
type MemberDetails struct {
	User     domain.UserSummary `json:"user"`
	JoinedAt time.Time          `json:"joinedAt"`
	IsActive bool               `json:"isActive"`
}

// MessDetails is the current mess of a member with its active members.
type MessDetails struct {
	MessWithAdmin
	Members     []MemberDetails `json:"members"`
	MemberCount int             `json:"memberCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// PendingRequest is a join request awaiting the admin's decision.
type PendingRequest struct {
	ID          uuid.UUID            `json:"id"`
	User        domain.UserSummary   `json:"user"`
	RequestedAt time.Time            `json:"requestedAt"`
	Status      domain.RequestStatus `json:"status"`
}

// RequestStatus answers the polling fallback. Mess is nil for StatusNone.
type RequestStatus struct {
	Status Status              `json:"status"`
	Mess   *domain.MessSummary `json:"mess"`
}

// JoinRequestResult is returned to a user who just asked to join.
type JoinRequestResult struct {
	RequestID   uuid.UUID           `json:"requestId"`
	RequestedAt time.Time           `json:"requestedAt"`
	Status      Status              `json:"status"`
	Mess        *domain.MessSummary `json:"mess"`
}
