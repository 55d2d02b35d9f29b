package mess

import (
	"github.com/go-chi/chi/v5"
	"github.com/tendant/dailyhome/internal/http/middleware"
)

// RegisterRoutes registers the membership endpoints. Must be mounted behind Auth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1/mess", func(r chi.Router) {
		r.Post("/", h.CreateMess)
		r.Get("/search/{code}", h.SearchMess)
		r.Post("/join", h.RequestToJoin)
		r.Post("/cancel-request", h.CancelRequest)
		r.Get("/check-request-status", h.CheckRequestStatus)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireMess())
			r.Get("/", h.GetMessDetails)
			r.Post("/leave", h.LeaveMess)
			r.Get("/online", h.OnlineMembers)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireMessAdmin())
			r.Get("/pending-requests", h.PendingRequests)
			r.Post("/accept-request", h.AcceptRequest)
			r.Post("/reject-request", h.RejectRequest)
			r.Delete("/members/{memberId}", h.RemoveMember)
		})
	})
}
