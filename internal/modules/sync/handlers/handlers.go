// Package handlers provides HTTP triggers for catalog synchronization.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/domain"
	"github.com/aristath/quotefeed/internal/modules/sync"
)

// Handler handles sync HTTP requests
type Handler struct {
	service *sync.Service
	log     zerolog.Logger
}

// NewHandler creates a new sync handler
func NewHandler(service *sync.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "sync").Logger(),
	}
}

// HandleFullSync handles POST /api/sync/full. With a ticker query param
// it syncs that ticker synchronously; without one it kicks off a global
// sync in the background and returns immediately.
func (h *Handler) HandleFullSync(w http.ResponseWriter, r *http.Request) {
	h.handleSync(w, r, true)
}

// HandleDeltaSync handles POST /api/sync/delta
func (h *Handler) HandleDeltaSync(w http.ResponseWriter, r *http.Request) {
	h.handleSync(w, r, false)
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request, full bool) {
	mode := "delta"
	if full {
		mode = "full"
	}

	if ticker := r.URL.Query().Get("ticker"); ticker != "" {
		if err := h.service.SyncTicker(r.Context(), ticker, full); err != nil {
			h.log.Error().Err(err).Str("ticker", ticker).Msg("Ticker sync failed")
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		response := map[string]interface{}{
			"data": map[string]interface{}{
				"mode":   mode,
				"ticker": ticker,
				"status": "completed",
			},
			"metadata": map[string]interface{}{
				"timestamp": time.Now().Format(time.RFC3339),
			},
		}
		h.writeJSON(w, http.StatusOK, response)
		return
	}

	go func() {
		ctx := context.Background()
		var err error
		if full {
			err = h.service.FullSync(ctx)
		} else {
			err = h.service.DeltaSync(ctx)
		}
		if err != nil {
			h.log.Error().Err(err).Str("mode", mode).Msg("Background sync failed")
		}
	}()

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"mode":   mode,
			"status": "started",
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusAccepted, response)
}

// RegisterRequest is the body for adding a ticker to the catalog
type RegisterRequest struct {
	AssetType string `json:"asset_type"`
	Symbol    string `json:"symbol"`
}

// HandleRegister handles POST /api/tickers
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	var ticker string
	var err error
	switch domain.AssetType(req.AssetType) {
	case domain.AssetStock:
		ticker, err = h.service.RegisterStock(r.Context(), req.Symbol)
	case domain.AssetCrypto:
		ticker, err = h.service.RegisterCrypto(r.Context(), req.Symbol)
	case domain.AssetCurrency:
		ticker, err = h.service.RegisterCurrency(r.Context(), req.Symbol)
	default:
		http.Error(w, "asset_type must be STOCK, CRYPTO, or CURRENCY", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("symbol", req.Symbol).Msg("Ticker registration failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":     ticker,
			"asset_type": req.AssetType,
			"symbol":     req.Symbol,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusCreated, response)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
