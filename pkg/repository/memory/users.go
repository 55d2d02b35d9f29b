package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/pkg/domain"
	"github.com/tendant/dailyhome/pkg/mess"
)

// Users is the account-side view of the user records. Each call is its own
// unit of work.
type Users struct {
	store *Store
}

func (u *Users) run(ctx context.Context, fn func(r *userRepo) error) error {
	return u.store.Atomic(ctx, func(ctx context.Context, t mess.Tx) error {
		return fn(&userRepo{data: t.(*tx).data})
	})
}

// Create stores a new user. The email must be unused.
func (u *Users) Create(ctx context.Context, user *domain.User) error {
	return u.run(ctx, func(r *userRepo) error {
		return r.create(user)
	})
}

// GetByID retrieves a user by ID.
func (u *Users) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user *domain.User
	err := u.run(ctx, func(r *userRepo) error {
		var err error
		user, err = r.GetByID(ctx, id)
		return err
	})
	return user, err
}

// GetByEmail retrieves a user by email, case-insensitively.
func (u *Users) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user *domain.User
	err := u.run(ctx, func(r *userRepo) error {
		var err error
		user, err = r.getByEmail(email)
		return err
	})
	return user, err
}

// Update saves the profile and verification fields of a user.
func (u *Users) Update(ctx context.Context, user *domain.User) error {
	return u.run(ctx, func(r *userRepo) error {
		stored, err := r.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}
		updated := copyUser(user)
		// The mess pointer is owned by the membership service.
		updated.CurrentMessID = stored.CurrentMessID
		updated.IsMessAdmin = stored.IsMessAdmin
		return r.update(updated)
	})
}

// Delete removes a user.
func (u *Users) Delete(ctx context.Context, id uuid.UUID) error {
	return u.run(ctx, func(r *userRepo) error {
		return r.delete(id)
	})
}
