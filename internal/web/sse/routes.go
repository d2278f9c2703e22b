package sse

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts h at /events on r.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/events", h.ServeHTTP)
}
