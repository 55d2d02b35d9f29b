package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/pkg/domain"
)

const memberColumns = `id, user_id, mess_id, name, is_active, created_at, updated_at`

// MembersRepository handles the per-(user, mess) member projection.
type MembersRepository struct {
	q Querier
}

// NewMembersRepository creates a new members repository.
func NewMembersRepository(db *sql.DB) *MembersRepository {
	return &MembersRepository{q: db}
}

func scanMember(row rowScanner) (*domain.Member, error) {
	var m domain.Member
	err := row.Scan(&m.ID, &m.UserID, &m.MessID, &m.Name, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByUserAndMess retrieves the member record of a user in a mess.
func (r *MembersRepository) GetByUserAndMess(ctx context.Context, userID, messID uuid.UUID) (*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE user_id = $1 AND mess_id = $2`
	m, err := scanMember(r.q.QueryRowContext(ctx, query, userID, messID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMemberRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Upsert creates the member record or updates the existing one for the same user and mess.
func (r *MembersRepository) Upsert(ctx context.Context, member *domain.Member) error {
	query := `
		INSERT INTO members (` + memberColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, mess_id)
		DO UPDATE SET name = EXCLUDED.name, is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		member.ID, member.UserID, member.MessID, member.Name,
		member.IsActive, member.CreatedAt, member.UpdatedAt,
	)
	return err
}

// ListActiveByMess lists the active member records of a mess, oldest first.
func (r *MembersRepository) ListActiveByMess(ctx context.Context, messID uuid.UUID) ([]*domain.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE mess_id = $1 AND is_active
		ORDER BY created_at
	`
	rows, err := r.q.QueryContext(ctx, query, messID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
