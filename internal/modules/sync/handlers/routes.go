package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers sync routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/sync", func(r chi.Router) {
		r.Post("/full", h.HandleFullSync)
		r.Post("/delta", h.HandleDeltaSync)
	})
	r.Post("/tickers", h.HandleRegister)
}
