package account

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/dailyhome/internal/httputil"
	"github.com/tendant/dailyhome/pkg/auth"
	"github.com/tendant/dailyhome/pkg/repository/memory"
)

type lastCode struct {
	to, code string
}

func (l *lastCode) SendOTPEmail(to, _, code string) error {
	l.to, l.code = to, code
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *lastCode) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &lastCode{}
	accounts := auth.NewAccountService(
		auth.AccountConfig{Password: auth.PasswordPolicy{MinLength: auth.DefaultPasswordMinLength}},
		memory.NewStore().Users(),
		auth.NewTokenService(auth.TokenConfig{JWTSecret: []byte("test-secret"), Issuer: "dailyhome"}),
		auth.NewOTPService(auth.OTPConfig{Issuer: "dailyhome", TTL: time.Minute}),
		sender,
		logger,
	)

	r := chi.NewRouter()
	NewHandler(logger, accounts, time.Hour, httputil.DefaultCookieConfig()).RegisterRoutes(r)
	return r, sender
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func authCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == httputil.AccessTokenCookie {
			return c
		}
	}
	return nil
}

func TestHandler_SignupVerifyLogin(t *testing.T) {
	h, sender := newTestRouter(t)

	w := post(t, h, "/v1/auth/signup", SignupRequest{Email: "bob@example.com", Password: "secret1", FullName: "Bob"})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	signup := decode[signupResponse](t, w)

	w = post(t, h, "/v1/auth/login", LoginRequest{Email: "bob@example.com", Password: "secret1"})
	if w.Code != http.StatusForbidden {
		t.Errorf("login before verify status = %d, want %d", w.Code, http.StatusForbidden)
	}

	w = post(t, h, "/v1/auth/verify-otp", VerifyOTPRequest{UserID: signup.UserID.String(), OTP: "000000"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("verify with wrong code status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = post(t, h, "/v1/auth/verify-otp", VerifyOTPRequest{UserID: signup.UserID.String(), OTP: sender.code})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	verified := decode[AuthResponse](t, w)
	if verified.Token == "" || !verified.User.IsEmailVerified {
		t.Errorf("verify response = %+v, want token and verified user", verified)
	}
	if c := authCookie(w); c == nil || c.Value != verified.Token || !c.HttpOnly {
		t.Errorf("auth cookie = %+v, want HttpOnly cookie holding the token", c)
	}

	w = post(t, h, "/v1/auth/login", LoginRequest{Email: "BOB@example.com", Password: "secret1"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d", w.Code, http.StatusOK)
	}
	if login := decode[AuthResponse](t, w); login.User.ID != signup.UserID {
		t.Errorf("login user = %v, want %v", login.User.ID, signup.UserID)
	}

	w = post(t, h, "/v1/auth/login", LoginRequest{Email: "bob@example.com", Password: "wrong"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("login with wrong password status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandler_ResendOTP(t *testing.T) {
	h, sender := newTestRouter(t)

	w := post(t, h, "/v1/auth/signup", SignupRequest{Email: "carol@example.com", Password: "secret1", FullName: "Carol"})
	signup := decode[signupResponse](t, w)
	first := sender.code

	w = post(t, h, "/v1/auth/resend-otp", ResendOTPRequest{UserID: signup.UserID.String()})
	if w.Code != http.StatusOK {
		t.Fatalf("resend status = %d, want %d", w.Code, http.StatusOK)
	}
	if sender.code == "" {
		t.Fatal("no code sent on resend")
	}

	if sender.code != first {
		w = post(t, h, "/v1/auth/verify-otp", VerifyOTPRequest{UserID: signup.UserID.String(), OTP: first})
		if w.Code != http.StatusBadRequest {
			t.Errorf("verify with replaced code status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	}

	w = post(t, h, "/v1/auth/verify-otp", VerifyOTPRequest{UserID: signup.UserID.String(), OTP: sender.code})
	if w.Code != http.StatusOK {
		t.Errorf("verify with resent code status = %d, want %d", w.Code, http.StatusOK)
	}

	w = post(t, h, "/v1/auth/resend-otp", ResendOTPRequest{UserID: signup.UserID.String()})
	if w.Code != http.StatusConflict {
		t.Errorf("resend after verify status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestHandler_Validation(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name      string
		path      string
		body      any
		wantCode  int
		wantError string
	}{
		{
			name:      "signup missing fields",
			path:      "/v1/auth/signup",
			body:      SignupRequest{Email: "a@example.com"},
			wantCode:  http.StatusBadRequest,
			wantError: "email, password and fullName are required",
		},
		{
			name:      "signup short password",
			path:      "/v1/auth/signup",
			body:      SignupRequest{Email: "a@example.com", Password: "abc", FullName: "A"},
			wantCode:  http.StatusBadRequest,
			wantError: "password must contain at least 6 characters",
		},
		{
			name:      "verify missing user",
			path:      "/v1/auth/verify-otp",
			body:      VerifyOTPRequest{OTP: "123456"},
			wantCode:  http.StatusBadRequest,
			wantError: "userId is required",
		},
		{
			name:      "verify malformed user",
			path:      "/v1/auth/verify-otp",
			body:      VerifyOTPRequest{UserID: "nope", OTP: "123456"},
			wantCode:  http.StatusBadRequest,
			wantError: "invalid userId",
		},
		{
			name:      "resend unknown user",
			path:      "/v1/auth/resend-otp",
			body:      ResendOTPRequest{UserID: "00000000-0000-0000-0000-000000000001"},
			wantCode:  http.StatusNotFound,
			wantError: "user not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if got := decode[httputil.ErrorResponse](t, w); got.Error != tt.wantError {
				t.Errorf("error = %q, want %q", got.Error, tt.wantError)
			}
		})
	}
}

func TestHandler_Logout(t *testing.T) {
	h, _ := newTestRouter(t)
	w := post(t, h, "/v1/auth/logout", struct{}{})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if c := authCookie(w); c == nil || c.MaxAge >= 0 {
		t.Errorf("cookie = %+v, want cleared auth cookie", c)
	}
}

func TestHandler_MobileClientGetsNoCookie(t *testing.T) {
	h, sender := newTestRouter(t)

	w := post(t, h, "/v1/auth/signup", SignupRequest{Email: "mo@example.com", Password: "secret1", FullName: "Mo"})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	signup := decode[signupResponse](t, w)

	mobile := func(path string, body any) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set("X-Client-Type", "mobile")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	tests := []struct {
		name string
		path string
		body any
	}{
		{name: "verify otp", path: "/v1/auth/verify-otp", body: VerifyOTPRequest{UserID: signup.UserID.String(), OTP: sender.code}},
		{name: "login", path: "/v1/auth/login", body: LoginRequest{Email: "mo@example.com", Password: "secret1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := mobile(tt.path, tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
			}
			if c := authCookie(w); c != nil {
				t.Errorf("auth cookie = %+v, want none for mobile clients", c)
			}
			if resp := decode[AuthResponse](t, w); resp.Token == "" {
				t.Error("token missing from response body")
			}
		})
	}
}
