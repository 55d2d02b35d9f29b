package mess

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/tendant/dailyhome/internal/http/middleware"
	"github.com/tendant/dailyhome/internal/httputil"
	"github.com/tendant/dailyhome/pkg/domain"
	"github.com/tendant/dailyhome/pkg/mess"
)

// Handler handles mess membership endpoints.
type Handler struct {
	logger  *slog.Logger
	service *mess.Service
}

// NewHandler creates a new mess handler.
func NewHandler(logger *slog.Logger, service *mess.Service) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// CreateMessRequest represents a create mess request.
type CreateMessRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// JoinRequest represents a request to join a mess.
type JoinRequest struct {
	MessID string `json:"messId"`
}

// RequestActionRequest names the join request an admin acts on.
type RequestActionRequest struct {
	RequestID string `json:"requestId"`
}

// MessageResponse is returned by operations without a payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// MessResponse wraps a mess summary.
type MessResponse struct {
	Message string              `json:"message"`
	Mess    *domain.MessSummary `json:"mess"`
}

// SearchResponse wraps a search result.
type SearchResponse struct {
	Mess *mess.MessWithAdmin `json:"mess"`
}

// JoinResponse wraps a newly filed join request.
type JoinResponse struct {
	Message string                  `json:"message"`
	Request *mess.JoinRequestResult `json:"request"`
}

// PendingRequestsResponse lists pending join requests.
type PendingRequestsResponse struct {
	Requests []mess.PendingRequest `json:"requests"`
}

// AcceptResponse names the accepted member.
type AcceptResponse struct {
	Message string             `json:"message"`
	Member  domain.UserSummary `json:"member"`
}

// StatusResponse reports the caller's membership status.
type StatusResponse struct {
	Status  mess.Status         `json:"status"`
	Message string              `json:"message"`
	Mess    *domain.MessSummary `json:"mess"`
}

// DetailsResponse wraps the caller's mess details.
type DetailsResponse struct {
	Mess *mess.MessDetails `json:"mess"`
}

// OnlineResponse lists connected members.
type OnlineResponse struct {
	Members []domain.UserSummary `json:"members"`
	Count   int                  `json:"count"`
}

func parseID(raw, field string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, domain.Invalid(field + " is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.Invalid("invalid " + field)
	}
	return id, nil
}

// actor returns the authenticated user ID or writes a 401.
func actor(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.WriteError(w, domain.ErrMissingToken)
	}
	return userID, ok
}

// writeError logs unexpected failures before answering.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if domain.KindOf(err) == domain.KindInternal {
		h.logger.Error(op+" failed", "error", err, "request_id", chimw.GetReqID(r.Context()))
	}
	httputil.WriteError(w, err)
}

// CreateMess creates a mess administered by the caller.
// POST /v1/mess
func (h *Handler) CreateMess(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req CreateMessRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	created, err := h.service.CreateMess(r.Context(), userID, mess.CreateMessInput{
		Name:    req.Name,
		Address: req.Address,
	})
	if err != nil {
		h.writeError(w, r, "create mess", err)
		return
	}

	httputil.JSON(w, http.StatusCreated, MessResponse{
		Message: "Mess created successfully",
		Mess:    created,
	})
}

// SearchMess finds an active mess by identifier code.
// GET /v1/mess/search/{code}
func (h *Handler) SearchMess(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.SearchMess(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, "search mess", err)
		return
	}
	httputil.JSON(w, http.StatusOK, SearchResponse{Mess: found})
}

// RequestToJoin files a join request from the caller.
// POST /v1/mess/join
func (h *Handler) RequestToJoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	var req JoinRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	messID, err := parseID(req.MessID, "messId")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.RequestToJoin(r.Context(), userID, messID)
	if err != nil {
		h.writeError(w, r, "request to join", err)
		return
	}

	httputil.JSON(w, http.StatusCreated, JoinResponse{
		Message: "Join request sent successfully",
		Request: result,
	})
}

// PendingRequests lists the pending requests of the caller's mess.
// GET /v1/mess/pending-requests
func (h *Handler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	requests, err := h.service.ListPendingRequests(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "list pending requests", err)
		return
	}
	if requests == nil {
		requests = []mess.PendingRequest{}
	}
	httputil.JSON(w, http.StatusOK, PendingRequestsResponse{Requests: requests})
}

// AcceptRequest approves a pending request.
// POST /v1/mess/accept-request
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	requestID, ok := decodeRequestID(w, r)
	if !ok {
		return
	}

	member, err := h.service.AcceptRequest(r.Context(), userID, requestID)
	if err != nil {
		h.writeError(w, r, "accept request", err)
		return
	}

	httputil.JSON(w, http.StatusOK, AcceptResponse{
		Message: "Request accepted successfully",
		Member:  *member,
	})
}

// RejectRequest rejects a pending request.
// POST /v1/mess/reject-request
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	requestID, ok := decodeRequestID(w, r)
	if !ok {
		return
	}

	if err := h.service.RejectRequest(r.Context(), userID, requestID); err != nil {
		h.writeError(w, r, "reject request", err)
		return
	}
	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "Request rejected successfully"})
}

// CancelRequest withdraws the caller's pending request.
// POST /v1/mess/cancel-request
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelRequest(r.Context(), userID); err != nil {
		h.writeError(w, r, "cancel request", err)
		return
	}
	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "Request cancelled successfully"})
}

// CheckRequestStatus reports the caller's membership status.
// GET /v1/mess/check-request-status
func (h *Handler) CheckRequestStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	status, err := h.service.CheckRequestStatus(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "check request status", err)
		return
	}

	httputil.JSON(w, http.StatusOK, StatusResponse{
		Status:  status.Status,
		Message: status.Status.Message(),
		Mess:    status.Mess,
	})
}

// LeaveMess removes the caller from their mess.
// POST /v1/mess/leave
func (h *Handler) LeaveMess(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	if err := h.service.LeaveMess(r.Context(), userID); err != nil {
		h.writeError(w, r, "leave mess", err)
		return
	}
	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "Left mess successfully"})
}

// GetMessDetails returns the caller's mess with its active members.
// GET /v1/mess
func (h *Handler) GetMessDetails(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	details, err := h.service.GetMessDetails(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "get mess details", err)
		return
	}
	httputil.JSON(w, http.StatusOK, DetailsResponse{Mess: details})
}

// RemoveMember removes a member from the caller's mess.
// DELETE /v1/mess/members/{memberId}
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	memberID, err := parseID(chi.URLParam(r, "memberId"), "memberId")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.RemoveMember(r.Context(), userID, memberID); err != nil {
		h.writeError(w, r, "remove member", err)
		return
	}
	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "Member removed successfully"})
}

// OnlineMembers lists the members of the caller's mess that are connected.
// GET /v1/mess/online
func (h *Handler) OnlineMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}

	members, err := h.service.OnlineMembers(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "list online members", err)
		return
	}
	httputil.JSON(w, http.StatusOK, OnlineResponse{Members: members, Count: len(members)})
}

func decodeRequestID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	var req RequestActionRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return uuid.Nil, false
	}
	id, err := parseID(req.RequestID, "requestId")
	if err != nil {
		httputil.WriteError(w, err)
		return uuid.Nil, false
	}
	return id, true
}
