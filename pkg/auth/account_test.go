package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/pkg/domain"
	"github.com/tendant/dailyhome/pkg/repository/memory"
)

type capturedCode struct {
	to, name, code string
}

type captureSender struct {
	sent []capturedCode
	err  error
}

func (c *captureSender) SendOTPEmail(to, name, code string) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, capturedCode{to: to, name: name, code: code})
	return nil
}

func (c *captureSender) last(t *testing.T) capturedCode {
	t.Helper()
	if len(c.sent) == 0 {
		t.Fatal("no verification code was sent")
	}
	return c.sent[len(c.sent)-1]
}

func newTestAccountService() (*AccountService, *captureSender) {
	sender := &captureSender{}
	svc := NewAccountService(
		AccountConfig{Password: PasswordPolicy{MinLength: DefaultPasswordMinLength}},
		memory.NewStore().Users(),
		newTestTokenService(),
		NewOTPService(OTPConfig{Issuer: "dailyhome", TTL: time.Minute}),
		sender,
		nil,
	)
	return svc, sender
}

func signup(t *testing.T, svc *AccountService, email string) *domain.User {
	t.Helper()
	user, err := svc.Signup(context.Background(), SignupInput{
		Email:    email,
		Password: "secret1",
		FullName: "  Alice   Smith ",
	})
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	return user
}

func TestAccountService_SignupVerifyLogin(t *testing.T) {
	ctx := context.Background()
	svc, sender := newTestAccountService()

	user := signup(t, svc, "Alice@Example.com")
	if user.Email != "alice@example.com" || user.FullName != "Alice Smith" {
		t.Errorf("user = %q %q, want normalized email and name", user.Email, user.FullName)
	}
	if user.EmailVerified {
		t.Error("EmailVerified = true right after signup")
	}

	sent := sender.last(t)
	if sent.to != user.Email {
		t.Errorf("code sent to %q, want %q", sent.to, user.Email)
	}

	if _, _, err := svc.Login(ctx, user.Email, "secret1"); !errors.Is(err, domain.ErrEmailNotVerified) {
		t.Errorf("Login() before verification error = %v, want %v", err, domain.ErrEmailNotVerified)
	}
	if _, _, err := svc.VerifyOTP(ctx, user.ID, "0000x"); !errors.Is(err, domain.ErrInvalidOTP) {
		t.Errorf("VerifyOTP() wrong code error = %v, want %v", err, domain.ErrInvalidOTP)
	}

	verified, token, err := svc.VerifyOTP(ctx, user.ID, sent.code)
	if err != nil {
		t.Fatalf("VerifyOTP() error = %v", err)
	}
	if !verified.EmailVerified || verified.OTP != nil {
		t.Errorf("verified user = %+v, want verified without a pending code", verified)
	}
	if token.AccessToken == "" {
		t.Error("VerifyOTP() returned an empty token")
	}
	if _, _, err := svc.VerifyOTP(ctx, user.ID, sent.code); !errors.Is(err, domain.ErrEmailAlreadyVerified) {
		t.Errorf("second VerifyOTP() error = %v, want %v", err, domain.ErrEmailAlreadyVerified)
	}

	_, token, err = svc.Login(ctx, "  ALICE@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	id, err := svc.tokens.UserIDFromToken(token.AccessToken)
	if err != nil || id != user.ID {
		t.Errorf("token subject = %v, %v, want %v", id, err, user.ID)
	}
}

func TestAccountService_SignupValidation(t *testing.T) {
	svc, _ := newTestAccountService()

	tests := []struct {
		name string
		in   SignupInput
	}{
		{name: "bad email", in: SignupInput{Email: "not-an-email", Password: "secret1", FullName: "A"}},
		{name: "short password", in: SignupInput{Email: "a@example.com", Password: "abc", FullName: "A"}},
		{name: "missing name", in: SignupInput{Email: "a@example.com", Password: "secret1", FullName: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), tt.in)
			if domain.KindOf(err) != domain.KindInvalid {
				t.Errorf("Signup() error = %v, want an invalid-input error", err)
			}
		})
	}
}

func TestAccountService_SignupExistingEmail(t *testing.T) {
	ctx := context.Background()
	svc, sender := newTestAccountService()

	first := signup(t, svc, "bob@example.com")
	second := signup(t, svc, "bob@example.com")
	if first.ID == second.ID {
		t.Error("signup over an unverified account should replace it")
	}
	if _, err := svc.GetUser(ctx, first.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetUser(replaced) error = %v, want %v", err, domain.ErrUserNotFound)
	}

	if _, _, err := svc.VerifyOTP(ctx, second.ID, sender.last(t).code); err != nil {
		t.Fatalf("VerifyOTP() error = %v", err)
	}
	_, err := svc.Signup(ctx, SignupInput{Email: "bob@example.com", Password: "secret1", FullName: "Bob"})
	if !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Errorf("Signup() over verified account error = %v, want %v", err, domain.ErrUserAlreadyExists)
	}
}

func TestAccountService_SignupSendFailure(t *testing.T) {
	svc, sender := newTestAccountService()
	sender.err = errors.New("smtp down")

	_, err := svc.Signup(context.Background(), SignupInput{Email: "c@example.com", Password: "secret1", FullName: "C"})
	if err == nil {
		t.Fatal("Signup() error = nil, want delivery failure")
	}
}

func TestAccountService_ResendOTP(t *testing.T) {
	ctx := context.Background()
	svc, sender := newTestAccountService()

	user := signup(t, svc, "dana@example.com")
	first := sender.last(t).code

	if err := svc.ResendOTP(ctx, user.ID); err != nil {
		t.Fatalf("ResendOTP() error = %v", err)
	}
	second := sender.last(t).code
	if len(sender.sent) != 2 {
		t.Errorf("sent %d codes, want 2", len(sender.sent))
	}

	if first != second {
		if _, _, err := svc.VerifyOTP(ctx, user.ID, first); !errors.Is(err, domain.ErrInvalidOTP) {
			t.Errorf("VerifyOTP(old code) error = %v, want %v", err, domain.ErrInvalidOTP)
		}
	}
	if _, _, err := svc.VerifyOTP(ctx, user.ID, second); err != nil {
		t.Fatalf("VerifyOTP(new code) error = %v", err)
	}

	if err := svc.ResendOTP(ctx, user.ID); !errors.Is(err, domain.ErrEmailAlreadyVerified) {
		t.Errorf("ResendOTP() after verification error = %v, want %v", err, domain.ErrEmailAlreadyVerified)
	}
	if err := svc.ResendOTP(ctx, uuid.New()); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("ResendOTP(unknown) error = %v, want %v", err, domain.ErrUserNotFound)
	}
}

func TestAccountService_LoginFailures(t *testing.T) {
	ctx := context.Background()
	svc, sender := newTestAccountService()

	user := signup(t, svc, "erin@example.com")
	if _, _, err := svc.VerifyOTP(ctx, user.ID, sender.last(t).code); err != nil {
		t.Fatalf("VerifyOTP() error = %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "unknown email", email: "nobody@example.com", password: "secret1"},
		{name: "wrong password", email: "erin@example.com", password: "wrong-password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.Login(ctx, tt.email, tt.password); !errors.Is(err, domain.ErrInvalidCredentials) {
				t.Errorf("Login() error = %v, want %v", err, domain.ErrInvalidCredentials)
			}
		})
	}
}

func TestAccountService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAccountService()
	user := signup(t, svc, "fay@example.com")

	updated, err := svc.UpdateProfile(ctx, user.ID, "  Fay   Jones ")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.FullName != "Fay Jones" {
		t.Errorf("FullName = %q, want %q", updated.FullName, "Fay Jones")
	}
	stored, _ := svc.GetUser(ctx, user.ID)
	if stored.FullName != "Fay Jones" {
		t.Errorf("stored FullName = %q, want %q", stored.FullName, "Fay Jones")
	}

	if _, err := svc.UpdateProfile(ctx, user.ID, " "); domain.KindOf(err) != domain.KindInvalid {
		t.Errorf("UpdateProfile(blank) error = %v, want an invalid-input error", err)
	}
}
