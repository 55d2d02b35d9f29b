package account

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/internal/httputil"
	"github.com/tendant/dailyhome/pkg/auth"
	"github.com/tendant/dailyhome/pkg/domain"
)

// Handler handles signup, email verification and login endpoints.
type Handler struct {
	logger       *slog.Logger
	accounts     *auth.AccountService
	tokenTTL     time.Duration
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new account handler.
func NewHandler(logger *slog.Logger, accounts *auth.AccountService, tokenTTL time.Duration, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		accounts:     accounts,
		tokenTTL:     tokenTTL,
		cookieConfig: cookieConfig,
	}
}

// SignupRequest represents a signup request.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// VerifyOTPRequest represents an email verification request.
type VerifyOTPRequest struct {
	UserID string `json:"userId"`
	OTP    string `json:"otp"`
}

// ResendOTPRequest represents a code resend request.
type ResendOTPRequest struct {
	UserID string `json:"userId"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the account view of a user.
type UserResponse struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	FullName        string     `json:"fullName"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	CurrentMess     *uuid.UUID `json:"currentMess"`
	IsMessAdmin     bool       `json:"isMessAdmin"`
}

// NewUserResponse converts a user for the API.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		FullName:        u.FullName,
		IsEmailVerified: u.EmailVerified,
		CurrentMess:     u.CurrentMessID,
		IsMessAdmin:     u.IsMessAdmin,
	}
}

// AuthResponse is returned when a token is issued.
type AuthResponse struct {
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type signupResponse struct {
	Message string    `json:"message"`
	UserID  uuid.UUID `json:"userId"`
}

func parseUserID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, domain.Invalid("userId is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.Invalid("invalid userId")
	}
	return id, nil
}

// Signup registers a new account and mails a verification code.
// POST /v1/auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		httputil.Error(w, http.StatusBadRequest, "email, password and fullName are required")
		return
	}

	user, err := h.accounts.Signup(r.Context(), auth.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		h.logger.Warn("signup failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, signupResponse{
		Message: "User registered successfully. Please check your email for the verification code.",
		UserID:  user.ID,
	})
}

// VerifyOTP confirms the email address and signs the user in.
// POST /v1/auth/verify-otp
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	userID, err := parseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.OTP == "" {
		httputil.Error(w, http.StatusBadRequest, "otp is required")
		return
	}

	user, token, err := h.accounts.VerifyOTP(r.Context(), userID, req.OTP)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeAuth(w, r, "Email verified successfully", user, token)
}

// ResendOTP mails a fresh verification code.
// POST /v1/auth/resend-otp
func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	userID, err := parseUserID(req.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.accounts.ResendOTP(r.Context(), userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, messageResponse{Message: "OTP sent successfully"})
}

// Login authenticates with email and password.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, token, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.Info("user logged in", "user_id", user.ID)
	h.writeAuth(w, r, "Login successful", user, token)
}

// Logout clears the access token cookie of web clients.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	httputil.ClearAuthCookie(w, h.cookieConfig)
	httputil.JSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

// writeAuth answers with the token. Web clients also get it as an HttpOnly cookie;
// mobile clients keep it from the body only.
func (h *Handler) writeAuth(w http.ResponseWriter, r *http.Request, message string, user *domain.User, token *auth.Token) {
	if !httputil.IsMobileClient(r) {
		httputil.SetAuthCookie(w, token.AccessToken, h.tokenTTL, h.cookieConfig)
	}
	httputil.JSON(w, http.StatusOK, AuthResponse{
		Message:   message,
		Token:     token.AccessToken,
		ExpiresAt: token.ExpiresAt,
		User:      NewUserResponse(user),
	})
}
