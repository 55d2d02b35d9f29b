package auth

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/tendant/dailyhome/pkg/domain"
)

const (
	// DefaultOTPTTL is used when OTPConfig.TTL is zero.
	DefaultOTPTTL = 3 * time.Minute
	// DefaultOTPIssuer is used when OTPConfig.Issuer is empty.
	DefaultOTPIssuer = "dailyhome"
	otpDigits        = otp.Digits(4)
)

// OTPConfig holds email verification code configuration.
type OTPConfig struct {
	Issuer string
	TTL    time.Duration
}

// OTPService issues counter-based one-time codes for email verification.
// Each user gets an HOTP secret; resending bumps the counter so earlier
// codes stop matching.
type OTPService struct {
	config OTPConfig
	now    func() time.Time
}

// NewOTPService creates a new OTP service.
func NewOTPService(config OTPConfig) *OTPService {
	if config.TTL == 0 {
		config.TTL = DefaultOTPTTL
	}
	if config.Issuer == "" {
		config.Issuer = DefaultOTPIssuer
	}
	return &OTPService{config: config, now: time.Now}
}

func (s *OTPService) validateOpts() hotp.ValidateOpts {
	return hotp.ValidateOpts{
		Digits:    otpDigits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// New creates a fresh secret for accountName and returns it with its first code.
func (s *OTPService) New(accountName string) (*domain.OneTimeCode, string, error) {
	key, err := hotp.Generate(hotp.GenerateOpts{
		Issuer:      s.config.Issuer,
		AccountName: accountName,
		Digits:      otpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, "", fmt.Errorf("generate otp secret: %w", err)
	}

	state := &domain.OneTimeCode{
		Secret:    key.Secret(),
		Counter:   0,
		ExpiresAt: s.now().Add(s.config.TTL),
	}
	code, err := hotp.GenerateCodeCustom(state.Secret, state.Counter, s.validateOpts())
	if err != nil {
		return nil, "", fmt.Errorf("generate otp code: %w", err)
	}
	return state, code, nil
}

// Refresh advances the counter, restarts the expiry and returns the new code.
func (s *OTPService) Refresh(state *domain.OneTimeCode) (string, error) {
	state.Counter++
	state.ExpiresAt = s.now().Add(s.config.TTL)

	code, err := hotp.GenerateCodeCustom(state.Secret, state.Counter, s.validateOpts())
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return code, nil
}

// Verify reports whether passcode is the current, unexpired code.
func (s *OTPService) Verify(state *domain.OneTimeCode, passcode string) bool {
	if state == nil || state.Expired(s.now()) {
		return false
	}

	valid, err := hotp.ValidateCustom(passcode, state.Counter, state.Secret, s.validateOpts())
	return err == nil && valid
}
