package me

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tendant/dailyhome/internal/http/features/account"
	"github.com/tendant/dailyhome/internal/http/middleware"
	"github.com/tendant/dailyhome/internal/httputil"
	"github.com/tendant/dailyhome/pkg/auth"
	"github.com/tendant/dailyhome/pkg/domain"
	"github.com/tendant/dailyhome/pkg/mess"
)

// StatusChecker derives the membership status of a user.
type StatusChecker interface {
	CheckRequestStatus(ctx context.Context, userID uuid.UUID) (*mess.RequestStatus, error)
}

// Handler handles user profile endpoints.
type Handler struct {
	logger   *slog.Logger
	accounts *auth.AccountService
	status   StatusChecker
}

// NewHandler creates a new me handler.
func NewHandler(logger *slog.Logger, accounts *auth.AccountService, status StatusChecker) *Handler {
	return &Handler{
		logger:   logger,
		accounts: accounts,
		status:   status,
	}
}

// MeResponse is the profile and membership state used for client routing.
type MeResponse struct {
	User               account.UserResponse `json:"user"`
	HasMess            bool                 `json:"hasMess"`
	IsMessAdmin        bool                 `json:"isMessAdmin"`
	CurrentMess        *domain.MessSummary  `json:"currentMess"`
	HasPendingRequest  bool                 `json:"hasPendingRequest"`
	PendingRequestMess *domain.MessSummary  `json:"pendingRequestMess"`
}

// UpdateRequest represents a profile update request.
type UpdateRequest struct {
	FullName *string `json:"fullName,omitempty"`
}

// GetMe returns the current user's profile.
// GET /v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.WriteError(w, domain.ErrMissingToken)
		return
	}

	status, err := h.status.CheckRequestStatus(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to load membership status", "user_id", user.ID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	resp := MeResponse{
		User:        account.NewUserResponse(user),
		HasMess:     user.CurrentMessID != nil,
		IsMessAdmin: user.IsMessAdmin,
	}
	switch status.Status {
	case mess.StatusAccepted:
		resp.CurrentMess = status.Mess
	case mess.StatusPending:
		resp.HasPendingRequest = true
		resp.PendingRequestMess = status.Mess
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// UpdateMe updates the current user's profile.
// PATCH /v1/me
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.WriteError(w, domain.ErrMissingToken)
		return
	}

	var req UpdateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.FullName == nil {
		httputil.Error(w, http.StatusBadRequest, "nothing to update")
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), userID, *req.FullName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.Info("profile updated", "user_id", userID)
	httputil.JSON(w, http.StatusOK, account.NewUserResponse(user))
}
