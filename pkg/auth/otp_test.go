package auth

import (
	"testing"
	"time"
)

func TestOTPService_NewAndVerify(t *testing.T) {
	svc := NewOTPService(OTPConfig{Issuer: "dailyhome", TTL: time.Minute})

	state, code, err := svc.New("a@example.com")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(code) != 4 {
		t.Errorf("code = %q, want 4 digits", code)
	}
	if state.Secret == "" || state.Counter != 0 {
		t.Errorf("state = %+v, want a secret at counter 0", state)
	}

	if !svc.Verify(state, code) {
		t.Error("Verify() = false for the issued code")
	}
	if svc.Verify(state, "abcd") {
		t.Error("Verify() = true for a non-numeric code")
	}
	if svc.Verify(nil, code) {
		t.Error("Verify() = true without a pending code")
	}
}

func TestOTPService_RefreshInvalidatesPreviousCode(t *testing.T) {
	svc := NewOTPService(OTPConfig{TTL: time.Minute})
	state, first, err := svc.New("a@example.com")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	second, err := svc.Refresh(state)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if state.Counter != 1 {
		t.Errorf("Counter = %d, want 1", state.Counter)
	}
	if !svc.Verify(state, second) {
		t.Error("Verify() = false for the refreshed code")
	}
	if first != second && svc.Verify(state, first) {
		t.Error("Verify() = true for the superseded code")
	}
}

func TestOTPService_Expiry(t *testing.T) {
	svc := NewOTPService(OTPConfig{TTL: time.Minute})
	state, code, err := svc.New("a@example.com")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if svc.Verify(state, code) {
		t.Error("Verify() = true after expiry")
	}

	if _, err := svc.Refresh(state); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if state.Expired(svc.now()) {
		t.Error("Refresh() should restart the expiry")
	}
}

func TestNewOTPService_Defaults(t *testing.T) {
	svc := NewOTPService(OTPConfig{})
	if svc.config.Issuer != DefaultOTPIssuer {
		t.Errorf("Issuer = %q, want %q", svc.config.Issuer, DefaultOTPIssuer)
	}
	if svc.config.TTL != DefaultOTPTTL {
		t.Errorf("TTL = %v, want %v", svc.config.TTL, DefaultOTPTTL)
	}

	state, code, err := svc.New("a@example.com")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !svc.Verify(state, code) {
		t.Error("Verify() = false for the issued code")
	}
}
