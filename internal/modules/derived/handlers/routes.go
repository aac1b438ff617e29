package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers derived ticker routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/derived", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{ticker}", h.HandleGet)
		r.Delete("/{ticker}", h.HandleDelete)
		r.Get("/{ticker}/latest", h.HandleLatest)
		r.Get("/{ticker}/historical", h.HandleHistorical)
	})
}
