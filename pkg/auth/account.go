package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/pkg/domain"
)

const maxFullNameLength = 100

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CodeSender delivers verification codes.
type CodeSender interface {
	SendOTPEmail(to, name, code string) error
}

// AccountConfig holds signup rules.
type AccountConfig struct {
	Email    EmailRules
	Password PasswordPolicy
}

// AccountService handles signup, email verification and login.
type AccountService struct {
	config AccountConfig
	users  UserStore
	tokens *TokenService
	otp    *OTPService
	sender CodeSender
	logger *slog.Logger
	now    func() time.Time
}

// NewAccountService creates a new account service.
func NewAccountService(
	config AccountConfig,
	users UserStore,
	tokens *TokenService,
	otp *OTPService,
	sender CodeSender,
	logger *slog.Logger,
) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		config: config,
		users:  users,
		tokens: tokens,
		otp:    otp,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// SignupInput is the input of Signup.
type SignupInput struct {
	Email    string
	Password string
	FullName string
}

// Signup creates an unverified account and sends its first code. An
// unverified account holding the same email is replaced.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	email, err := s.config.Email.Validate(in.Email)
	if err != nil {
		return nil, err
	}
	if err := s.config.Password.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	name := SanitizeName(in.FullName)
	if err := ValidateStringLength("full name", name, 1, maxFullNameLength); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.EmailVerified:
		return nil, domain.ErrUserAlreadyExists
	case err == nil:
		if err := s.users.Delete(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("replace unverified user: %w", err)
		}
		s.logger.Info("replaced unverified user", "user_id", existing.ID)
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	state, code, err := s.otp.New(email)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		FullName:     name,
		PasswordHash: hash,
		OTP:          state,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.sender.SendOTPEmail(user.Email, user.FullName, code); err != nil {
		return nil, fmt.Errorf("send verification code: %w", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// VerifyOTP marks the email verified when code is the current code and
// signs the user in.
func (s *AccountService) VerifyOTP(ctx context.Context, userID uuid.UUID, code string) (*domain.User, *Token, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user.EmailVerified {
		return nil, nil, domain.ErrEmailAlreadyVerified
	}
	if !s.otp.Verify(user.OTP, code) {
		return nil, nil, domain.ErrInvalidOTP
	}

	user.EmailVerified = true
	user.OTP = nil
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, nil, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("email verified", "user_id", user.ID)
	return user, token, nil
}

// ResendOTP issues the next code for an unverified user.
func (s *AccountService) ResendOTP(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return domain.ErrEmailAlreadyVerified
	}

	var code string
	if user.OTP == nil {
		user.OTP, code, err = s.otp.New(user.Email)
	} else {
		code, err = s.otp.Refresh(user.OTP)
	}
	if err != nil {
		return err
	}

	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	if err := s.sender.SendOTPEmail(user.Email, user.FullName, code); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

// Login checks email and password and issues a token. Unverified accounts
// are refused.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.User, *Token, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, nil, domain.ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return nil, nil, domain.ErrEmailNotVerified
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

// GetUser retrieves a user by ID.
func (s *AccountService) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile changes the display name of a user.
func (s *AccountService) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName string) (*domain.User, error) {
	name := SanitizeName(fullName)
	if err := ValidateStringLength("full name", name, 1, maxFullNameLength); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FullName = name
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
