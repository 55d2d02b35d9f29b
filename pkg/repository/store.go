package repository

import (
	"context"
	"database/sql"

	"github.com/tendant/dailyhome/pkg/mess"
)

// Store runs membership units of work in Postgres transactions.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Postgres store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Atomic runs fn in a transaction. Repositories handed to fn share it.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx mess.Tx) error) error {
	return Tx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(ctx, &unitOfWork{q: tx})
	})
}

type unitOfWork struct {
	q Querier
}

func (u *unitOfWork) Users() mess.UserRepository     { return &UsersRepository{q: u.q} }
func (u *unitOfWork) Messes() mess.MessRepository    { return &MessesRepository{q: u.q} }
func (u *unitOfWork) Members() mess.MemberRepository { return &MembersRepository{q: u.q} }
