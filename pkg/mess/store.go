package mess

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/pkg/domain"
)

// Store runs units of work. All writes made through the Tx handed to fn
// become visible together, or not at all when fn returns an error.
type Store interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of the store inside one unit of work.
type Tx interface {
	Users() UserRepository
	Messes() MessRepository
	Members() MemberRepository
}

// UserRepository is the identity store as seen by the membership service.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// GetForUpdate loads a user and holds it until the unit of work ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error)
	// UpdateMessState persists CurrentMessID and IsMessAdmin.
	UpdateMessState(ctx context.Context, user *domain.User) error
}

// MessRepository persists mess aggregates.
type MessRepository interface {
	// Create fails with domain.ErrIdentifierCodeTaken when the code is in use.
	Create(ctx context.Context, mess *domain.Mess) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Mess, error)
	// GetForUpdate loads a mess and holds it until the unit of work ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Mess, error)
	// GetByCode returns the active mess with the given identifier code.
	GetByCode(ctx context.Context, code string) (*domain.Mess, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// Update saves the aggregate and bumps its version. It fails with
	// domain.ErrConcurrentUpdate when the stored version moved on.
	Update(ctx context.Context, mess *domain.Mess) error
	// FindWithPendingRequestFrom returns the first mess holding a pending
	// request from userID, or domain.ErrNoPendingRequest.
	FindWithPendingRequestFrom(ctx context.Context, userID uuid.UUID) (*domain.Mess, error)
	// FindWithRejectedRequestFrom returns the mess that most recently
	// rejected userID, or domain.ErrMessNotFound.
	FindWithRejectedRequestFrom(ctx context.Context, userID uuid.UUID) (*domain.Mess, error)
}

// MemberRepository persists the member projection.
type MemberRepository interface {
	// GetByUserAndMess returns domain.ErrMemberRecordNotFound when absent.
	GetByUserAndMess(ctx context.Context, userID, messID uuid.UUID) (*domain.Member, error)
	Upsert(ctx context.Context, member *domain.Member) error
	ListActiveByMess(ctx context.Context, messID uuid.UUID) ([]*domain.Member, error)
}
