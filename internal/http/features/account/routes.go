package account

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the account endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/v1/auth/signup", h.Signup)
	r.Post("/v1/auth/verify-otp", h.VerifyOTP)
	r.Post("/v1/auth/resend-otp", h.ResendOTP)
	r.Post("/v1/auth/login", h.Login)
	r.Post("/v1/auth/logout", h.Logout)
}
