package me

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the profile endpoints. Must be mounted behind Auth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/v1/me", h.GetMe)
	r.Patch("/v1/me", h.UpdateMe)
}
