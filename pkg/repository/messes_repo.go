package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/pkg/domain"
)

const messColumns = `id, name, address, identifier_code, admin_id, is_active, version, created_at, updated_at`

// MessesRepository persists mess aggregates: the messes row plus its
// ordered mess_members and join_requests rows.
type MessesRepository struct {
	q Querier
}

// NewMessesRepository creates a new messes repository.
func NewMessesRepository(db *sql.DB) *MessesRepository {
	return &MessesRepository{q: db}
}

// Create creates a new mess with its members and requests.
func (r *MessesRepository) Create(ctx context.Context, mess *domain.Mess) error {
	mess.Version = 1
	query := `
		INSERT INTO messes (` + messColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q.ExecContext(ctx, query,
		mess.ID, mess.Name, mess.Address, mess.IdentifierCode, mess.AdminID,
		mess.IsActive, mess.Version, mess.CreatedAt, mess.UpdatedAt,
	)
	if isUniqueViolation(err, "messes_identifier_code_key") {
		return domain.ErrIdentifierCodeTaken
	}
	if err != nil {
		return err
	}
	return r.saveChildren(ctx, mess)
}

// GetByID retrieves a mess by ID.
func (r *MessesRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Mess, error) {
	return r.load(ctx, `SELECT `+messColumns+` FROM messes WHERE id = $1`, id)
}

// GetForUpdate retrieves a mess by ID and locks its row until the transaction ends.
func (r *MessesRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Mess, error) {
	return r.load(ctx, `SELECT `+messColumns+` FROM messes WHERE id = $1 FOR UPDATE`, id)
}

// GetByCode retrieves the active mess with the given identifier code.
func (r *MessesRepository) GetByCode(ctx context.Context, code string) (*domain.Mess, error) {
	return r.load(ctx, `SELECT `+messColumns+` FROM messes WHERE identifier_code = $1 AND is_active`, code)
}

// CodeExists checks whether an identifier code is assigned to any mess.
func (r *MessesRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM messes WHERE identifier_code = $1)`, code,
	).Scan(&exists)
	return exists, err
}

// Update saves the aggregate when its stored version still matches, then
// bumps the version.
func (r *MessesRepository) Update(ctx context.Context, mess *domain.Mess) error {
	query := `
		UPDATE messes
		SET name = $3, address = $4, is_active = $5, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
	`
	result, err := r.q.ExecContext(ctx, query,
		mess.ID, mess.Version, mess.Name, mess.Address, mess.IsActive,
	)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(result, domain.ErrConcurrentUpdate); err != nil {
		return err
	}
	mess.Version++
	return r.saveChildren(ctx, mess)
}

// FindWithPendingRequestFrom returns the oldest mess holding a pending request from userID.
func (r *MessesRepository) FindWithPendingRequestFrom(ctx context.Context, userID uuid.UUID) (*domain.Mess, error) {
	query := `
		SELECT m.id
		FROM join_requests jr
		JOIN messes m ON m.id = jr.mess_id
		WHERE jr.user_id = $1 AND jr.status = 'pending'
		ORDER BY m.created_at, m.id
		LIMIT 1
	`
	mess, err := r.findBy(ctx, query, userID)
	if errors.Is(err, domain.ErrMessNotFound) {
		return nil, domain.ErrNoPendingRequest
	}
	return mess, err
}

// FindWithRejectedRequestFrom returns the mess that most recently rejected userID.
func (r *MessesRepository) FindWithRejectedRequestFrom(ctx context.Context, userID uuid.UUID) (*domain.Mess, error) {
	query := `
		SELECT mess_id
		FROM join_requests
		WHERE user_id = $1 AND status = 'rejected'
		ORDER BY requested_at DESC
		LIMIT 1
	`
	return r.findBy(ctx, query, userID)
}

func (r *MessesRepository) findBy(ctx context.Context, query string, arg any) (*domain.Mess, error) {
	var id uuid.UUID
	err := r.q.QueryRowContext(ctx, query, arg).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *MessesRepository) load(ctx context.Context, query string, arg any) (*domain.Mess, error) {
	var mess domain.Mess
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&mess.ID, &mess.Name, &mess.Address, &mess.IdentifierCode, &mess.AdminID,
		&mess.IsActive, &mess.Version, &mess.CreatedAt, &mess.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessNotFound
	}
	if err != nil {
		return nil, err
	}

	if mess.Members, err = r.loadMembers(ctx, mess.ID); err != nil {
		return nil, fmt.Errorf("load members of mess %s: %w", mess.ID, err)
	}
	if mess.Requests, err = r.loadRequests(ctx, mess.ID); err != nil {
		return nil, fmt.Errorf("load requests of mess %s: %w", mess.ID, err)
	}
	return &mess, nil
}

func (r *MessesRepository) loadMembers(ctx context.Context, messID uuid.UUID) ([]domain.MessMember, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT user_id, joined_at, is_active
		FROM mess_members
		WHERE mess_id = $1
		ORDER BY seq
	`, messID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.MessMember
	for rows.Next() {
		var m domain.MessMember
		if err := rows.Scan(&m.UserID, &m.JoinedAt, &m.IsActive); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *MessesRepository) loadRequests(ctx context.Context, messID uuid.UUID) ([]domain.JoinRequest, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, requested_at, status
		FROM join_requests
		WHERE mess_id = $1
		ORDER BY seq
	`, messID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []domain.JoinRequest
	for rows.Next() {
		var req domain.JoinRequest
		if err := rows.Scan(&req.ID, &req.UserID, &req.RequestedAt, &req.Status); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// saveChildren writes the member and request lists. Requests no longer in
// the list (cancelled) are deleted first so the one-pending index holds.
func (r *MessesRepository) saveChildren(ctx context.Context, mess *domain.Mess) error {
	keep := make([]uuid.UUID, 0, len(mess.Requests))
	for _, req := range mess.Requests {
		keep = append(keep, req.ID)
	}
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM join_requests WHERE mess_id = $1 AND NOT (id = ANY($2::uuid[]))`,
		mess.ID, uuidArray(keep),
	)
	if err != nil {
		return fmt.Errorf("delete cancelled requests: %w", err)
	}

	for i, m := range mess.Members {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO mess_members (mess_id, user_id, seq, joined_at, is_active)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (mess_id, user_id)
			DO UPDATE SET seq = EXCLUDED.seq, joined_at = EXCLUDED.joined_at, is_active = EXCLUDED.is_active
		`, mess.ID, m.UserID, i, m.JoinedAt, m.IsActive)
		if err != nil {
			return fmt.Errorf("save member %s: %w", m.UserID, err)
		}
	}

	for i, req := range mess.Requests {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO join_requests (id, mess_id, user_id, seq, status, requested_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id)
			DO UPDATE SET seq = EXCLUDED.seq, status = EXCLUDED.status
		`, req.ID, mess.ID, req.UserID, i, req.Status, req.RequestedAt)
		if isUniqueViolation(err, "join_requests_one_pending") {
			return domain.ErrDuplicatePending
		}
		if err != nil {
			return fmt.Errorf("save request %s: %w", req.ID, err)
		}
	}
	return nil
}
