package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/pkg/domain"
)

const userColumns = `
	id, email, full_name, password_hash, email_verified,
	otp_secret, otp_counter, otp_expires_at,
	current_mess_id, is_mess_admin, created_at, updated_at`

// UsersRepository handles user persistence.
type UsersRepository struct {
	q Querier
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{q: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user      domain.User
		otpSecret sql.NullString
		otpCount  int64
		otpExpiry sql.NullTime
		messID    uuid.NullUUID
	)
	err := row.Scan(
		&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.EmailVerified,
		&otpSecret, &otpCount, &otpExpiry,
		&messID, &user.IsMessAdmin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if otpSecret.Valid {
		user.OTP = &domain.OneTimeCode{
			Secret:    otpSecret.String,
			Counter:   uint64(otpCount),
			ExpiresAt: otpExpiry.Time,
		}
	}
	if messID.Valid {
		id := messID.UUID
		user.CurrentMessID = &id
	}
	return &user, nil
}

func otpColumns(user *domain.User) (sql.NullString, int64, sql.NullTime) {
	if user.OTP == nil {
		return sql.NullString{}, 0, sql.NullTime{}
	}
	return sql.NullString{String: user.OTP.Secret, Valid: true},
		int64(user.OTP.Counter),
		sql.NullTime{Time: user.OTP.ExpiresAt, Valid: true}
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (r *UsersRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create creates a new user.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	secret, counter, expiry := otpColumns(user)
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.q.ExecContext(ctx, query,
		user.ID, user.Email, user.FullName, user.PasswordHash, user.EmailVerified,
		secret, counter, expiry,
		nullUUID(user.CurrentMessID), user.IsMessAdmin, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err, "users_email_key") {
		return domain.ErrUserAlreadyExists
	}
	return err
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetForUpdate retrieves a user by ID and locks the row until the transaction ends.
func (r *UsersRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

// ListByIDs retrieves the users with the given IDs. Unknown IDs are skipped.
func (r *UsersRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`,
		uuidArray(ids),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Update updates the profile and verification fields of a user. The mess
// pointer is left to UpdateMessState.
func (r *UsersRepository) Update(ctx context.Context, user *domain.User) error {
	secret, counter, expiry := otpColumns(user)
	query := `
		UPDATE users
		SET email = $2, full_name = $3, password_hash = $4, email_verified = $5,
		    otp_secret = $6, otp_counter = $7, otp_expires_at = $8, updated_at = $9
		WHERE id = $1
	`
	result, err := r.q.ExecContext(ctx, query,
		user.ID, user.Email, user.FullName, user.PasswordHash, user.EmailVerified,
		secret, counter, expiry, time.Now(),
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, domain.ErrUserNotFound)
}

// UpdateMessState persists the mess pointer and admin flag of a user.
func (r *UsersRepository) UpdateMessState(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET current_mess_id = $2, is_mess_admin = $3, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.q.ExecContext(ctx, query, user.ID, nullUUID(user.CurrentMessID), user.IsMessAdmin)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, domain.ErrUserNotFound)
}

// Delete permanently deletes a user.
func (r *UsersRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, domain.ErrUserNotFound)
}
