package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers catalog routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/assets", h.HandleListAssets)
	r.Get("/tickers", h.HandleSearchTickers)
	r.Get("/historical/{ticker}", h.HandleHistorical)
	r.Get("/unified", h.HandleUnified)
	r.Get("/stats", h.HandleStats)
}
