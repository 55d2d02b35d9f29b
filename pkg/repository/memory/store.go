// Package memory is a process-local implementation of the repositories. It
// enforces the same uniqueness rules as the Postgres schema and is used for
// development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/pkg/domain"
	"github.com/tendant/dailyhome/pkg/mess"
)

type memberKey struct {
	userID uuid.UUID
	messID uuid.UUID
}

type dataset struct {
	users   map[uuid.UUID]*domain.User
	messes  map[uuid.UUID]*domain.Mess
	members map[memberKey]*domain.Member
}

func newDataset() *dataset {
	return &dataset{
		users:   make(map[uuid.UUID]*domain.User),
		messes:  make(map[uuid.UUID]*domain.Mess),
		members: make(map[memberKey]*domain.Member),
	}
}

// clone copies the maps. Records are copied on write, never mutated in place.
func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.messes {
		c.messes[k] = v
	}
	for k, v := range d.members {
		c.members[k] = v
	}
	return c
}

// Store holds every record behind one mutex. Atomic stages writes on a copy
// of the dataset and swaps it in when fn succeeds.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// Atomic runs fn against a staged copy and commits it when fn returns nil.
// Units of work are serialized.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx mess.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.data.clone()
	if err := fn(ctx, &tx{data: staged}); err != nil {
		return err
	}
	s.data = staged
	return nil
}

// Users returns a user repository whose calls each commit on their own.
func (s *Store) Users() *Users {
	return &Users{store: s}
}

type tx struct {
	data *dataset
}

func (t *tx) Users() mess.UserRepository     { return &userRepo{data: t.data} }
func (t *tx) Messes() mess.MessRepository    { return &messRepo{data: t.data} }
func (t *tx) Members() mess.MemberRepository { return &memberRepo{data: t.data} }

func copyUser(u *domain.User) *domain.User {
	c := *u
	if u.CurrentMessID != nil {
		id := *u.CurrentMessID
		c.CurrentMessID = &id
	}
	if u.OTP != nil {
		otp := *u.OTP
		c.OTP = &otp
	}
	return &c
}

type userRepo struct {
	data *dataset
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := r.data.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *userRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error) {
	users := make([]*domain.User, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := r.data.users[id]; ok {
			users = append(users, copyUser(u))
		}
	}
	return users, nil
}

func (r *userRepo) UpdateMessState(ctx context.Context, user *domain.User) error {
	stored, ok := r.data.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	updated := copyUser(stored)
	updated.CurrentMessID = nil
	if user.CurrentMessID != nil {
		id := *user.CurrentMessID
		updated.CurrentMessID = &id
	}
	updated.IsMessAdmin = user.IsMessAdmin
	updated.UpdatedAt = user.UpdatedAt
	r.data.users[user.ID] = updated
	return nil
}

func (r *userRepo) getByEmail(email string) (*domain.User, error) {
	for _, u := range r.data.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *userRepo) create(user *domain.User) error {
	if _, err := r.getByEmail(user.Email); err == nil {
		return domain.ErrUserAlreadyExists
	}
	r.data.users[user.ID] = copyUser(user)
	return nil
}

func (r *userRepo) update(user *domain.User) error {
	if _, ok := r.data.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	r.data.users[user.ID] = copyUser(user)
	return nil
}

func (r *userRepo) delete(id uuid.UUID) error {
	if _, ok := r.data.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.data.users, id)
	return nil
}

type messRepo struct {
	data *dataset
}

func (r *messRepo) Create(ctx context.Context, m *domain.Mess) error {
	for _, existing := range r.data.messes {
		if existing.IdentifierCode == m.IdentifierCode {
			return domain.ErrIdentifierCodeTaken
		}
	}
	m.Version = 1
	r.data.messes[m.ID] = m.Clone()
	return nil
}

func (r *messRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Mess, error) {
	m, ok := r.data.messes[id]
	if !ok {
		return nil, domain.ErrMessNotFound
	}
	return m.Clone(), nil
}

func (r *messRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Mess, error) {
	return r.GetByID(ctx, id)
}

func (r *messRepo) GetByCode(ctx context.Context, code string) (*domain.Mess, error) {
	for _, m := range r.data.messes {
		if m.IdentifierCode == code && m.IsActive {
			return m.Clone(), nil
		}
	}
	return nil, domain.ErrMessNotFound
}

func (r *messRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	for _, m := range r.data.messes {
		if m.IdentifierCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *messRepo) Update(ctx context.Context, m *domain.Mess) error {
	stored, ok := r.data.messes[m.ID]
	if !ok {
		return domain.ErrMessNotFound
	}
	if stored.Version != m.Version {
		return domain.ErrConcurrentUpdate
	}
	m.Version++
	r.data.messes[m.ID] = m.Clone()
	return nil
}

// sorted returns the messes oldest first so lookups are deterministic.
func (r *messRepo) sorted() []*domain.Mess {
	list := make([]*domain.Mess, 0, len(r.data.messes))
	for _, m := range r.data.messes {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID.String() < list[j].ID.String()
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

func (r *messRepo) FindWithPendingRequestFrom(ctx context.Context, userID uuid.UUID) (*domain.Mess, error) {
	for _, m := range r.sorted() {
		if m.PendingRequestFrom(userID) != nil {
			return m.Clone(), nil
		}
	}
	return nil, domain.ErrNoPendingRequest
}

func (r *messRepo) FindWithRejectedRequestFrom(ctx context.Context, userID uuid.UUID) (*domain.Mess, error) {
	var latest *domain.Mess
	var latestAt int64
	for _, m := range r.sorted() {
		for _, req := range m.Requests {
			if req.UserID != userID || req.Status != domain.RequestStatusRejected {
				continue
			}
			if at := req.RequestedAt.UnixNano(); latest == nil || at > latestAt {
				latest, latestAt = m, at
			}
		}
	}
	if latest == nil {
		return nil, domain.ErrMessNotFound
	}
	return latest.Clone(), nil
}

type memberRepo struct {
	data *dataset
}

func (r *memberRepo) GetByUserAndMess(ctx context.Context, userID, messID uuid.UUID) (*domain.Member, error) {
	m, ok := r.data.members[memberKey{userID: userID, messID: messID}]
	if !ok {
		return nil, domain.ErrMemberRecordNotFound
	}
	c := *m
	return &c, nil
}

func (r *memberRepo) Upsert(ctx context.Context, member *domain.Member) error {
	key := memberKey{userID: member.UserID, messID: member.MessID}
	c := *member
	if existing, ok := r.data.members[key]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	}
	r.data.members[key] = &c
	return nil
}

func (r *memberRepo) ListActiveByMess(ctx context.Context, messID uuid.UUID) ([]*domain.Member, error) {
	var list []*domain.Member
	for _, m := range r.data.members {
		if m.MessID == messID && m.IsActive {
			c := *m
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}
