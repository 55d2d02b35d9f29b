package domain

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus represents the state of a join request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// MessMember is an entry in a mess's member list. Entries are never removed;
// leaving flips IsActive and rejoining flips it back.
type MessMember struct {
	UserID   uuid.UUID
	JoinedAt time.Time
	IsActive bool
}

// JoinRequest is an entry in a mess's request list.
type JoinRequest struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	RequestedAt time.Time
	Status      RequestStatus
}

// IsPending returns true if the request still awaits an admin decision.
func (r *JoinRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// Mess is the membership ledger of a shared household: its admin, members
// and join requests. Version is bumped on every save and guards against
// lost updates.
type Mess struct {
	ID             uuid.UUID
	Name           string
	Address        string
	IdentifierCode string
	AdminID        uuid.UUID
	Members        []MessMember
	Requests       []JoinRequest
	IsActive       bool
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewMess creates an active mess whose only member is its admin.
func NewMess(name, address, code string, adminID uuid.UUID, now time.Time) *Mess {
	return &Mess{
		ID:             uuid.New(),
		Name:           name,
		Address:        address,
		IdentifierCode: code,
		AdminID:        adminID,
		Members:        []MessMember{{UserID: adminID, JoinedAt: now, IsActive: true}},
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsAdmin returns true if userID is the admin of the mess.
func (m *Mess) IsAdmin(userID uuid.UUID) bool {
	return m.AdminID == userID
}

// Member returns the member entry of userID, active or not.
func (m *Mess) Member(userID uuid.UUID) *MessMember {
	for i := range m.Members {
		if m.Members[i].UserID == userID {
			return &m.Members[i]
		}
	}
	return nil
}

// IsActiveMember returns true if userID has an active member entry.
func (m *Mess) IsActiveMember(userID uuid.UUID) bool {
	member := m.Member(userID)
	return member != nil && member.IsActive
}

// ActiveMembers returns the active member entries in join order.
func (m *Mess) ActiveMembers() []MessMember {
	active := make([]MessMember, 0, len(m.Members))
	for _, member := range m.Members {
		if member.IsActive {
			active = append(active, member)
		}
	}
	return active
}

// PendingRequests returns the requests awaiting a decision, oldest first.
func (m *Mess) PendingRequests() []JoinRequest {
	var pending []JoinRequest
	for _, req := range m.Requests {
		if req.IsPending() {
			pending = append(pending, req)
		}
	}
	return pending
}

// PendingRequestFrom returns the pending request of userID, if any.
func (m *Mess) PendingRequestFrom(userID uuid.UUID) *JoinRequest {
	for i := range m.Requests {
		if m.Requests[i].UserID == userID && m.Requests[i].IsPending() {
			return &m.Requests[i]
		}
	}
	return nil
}

// HasRejectedRequestFrom returns true if userID was rejected by this mess at least once.
func (m *Mess) HasRejectedRequestFrom(userID uuid.UUID) bool {
	for _, req := range m.Requests {
		if req.UserID == userID && req.Status == RequestStatusRejected {
			return true
		}
	}
	return false
}

func (m *Mess) pendingRequest(id uuid.UUID) *JoinRequest {
	for i := range m.Requests {
		if m.Requests[i].ID == id && m.Requests[i].IsPending() {
			return &m.Requests[i]
		}
	}
	return nil
}

// RequestToJoin appends a pending request for userID.
func (m *Mess) RequestToJoin(userID uuid.UUID, now time.Time) (JoinRequest, error) {
	if m.IsActiveMember(userID) {
		return JoinRequest{}, ErrAlreadyMember
	}
	if m.PendingRequestFrom(userID) != nil {
		return JoinRequest{}, ErrDuplicatePending
	}

	req := JoinRequest{
		ID:          uuid.New(),
		UserID:      userID,
		RequestedAt: now,
		Status:      RequestStatusPending,
	}
	m.Requests = append(m.Requests, req)
	return req, nil
}

// Approve marks a pending request approved and activates its user.
func (m *Mess) Approve(requestID uuid.UUID, now time.Time) (JoinRequest, error) {
	req := m.pendingRequest(requestID)
	if req == nil {
		return JoinRequest{}, ErrRequestNotFound
	}
	if m.IsActiveMember(req.UserID) {
		return JoinRequest{}, ErrAlreadyActiveMember
	}

	req.Status = RequestStatusApproved
	m.Activate(req.UserID, now)
	return *req, nil
}

// Reject marks a pending request rejected. Membership is untouched.
func (m *Mess) Reject(requestID uuid.UUID) (JoinRequest, error) {
	req := m.pendingRequest(requestID)
	if req == nil {
		return JoinRequest{}, ErrRequestNotFound
	}

	req.Status = RequestStatusRejected
	return *req, nil
}

// CancelRequest removes the pending request of userID from the list.
func (m *Mess) CancelRequest(userID uuid.UUID) (JoinRequest, error) {
	for i, req := range m.Requests {
		if req.UserID == userID && req.IsPending() {
			m.Requests = append(m.Requests[:i], m.Requests[i+1:]...)
			return req, nil
		}
	}
	return JoinRequest{}, ErrNoPendingRequest
}

// Activate reactivates the existing entry of userID or appends a new one.
func (m *Mess) Activate(userID uuid.UUID, now time.Time) {
	if member := m.Member(userID); member != nil {
		member.IsActive = true
		member.JoinedAt = now
		return
	}
	m.Members = append(m.Members, MessMember{UserID: userID, JoinedAt: now, IsActive: true})
}

// Deactivate marks the entry of userID inactive. It reports whether an
// active entry was found.
func (m *Mess) Deactivate(userID uuid.UUID) bool {
	member := m.Member(userID)
	if member == nil || !member.IsActive {
		return false
	}
	member.IsActive = false
	return true
}

// Clone returns a deep copy of the mess.
func (m *Mess) Clone() *Mess {
	c := *m
	c.Members = append([]MessMember(nil), m.Members...)
	c.Requests = append([]JoinRequest(nil), m.Requests...)
	return &c
}

// MessSummary is the public view of a mess.
type MessSummary struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	IdentifierCode string    `json:"identifierCode"`
	AdminID        uuid.UUID `json:"admin"`
}

// Summary returns the public fields of the mess.
func (m *Mess) Summary() *MessSummary {
	return &MessSummary{
		ID:             m.ID,
		Name:           m.Name,
		Address:        m.Address,
		IdentifierCode: m.IdentifierCode,
		AdminID:        m.AdminID,
	}
}
