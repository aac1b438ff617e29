package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers latest-price routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/latest/{ticker}", h.HandleGetLatest)
	r.Get("/cache/info", h.HandleCacheInfo)
	r.Get("/ticker_traffic", h.HandleTickerTraffic)
}
