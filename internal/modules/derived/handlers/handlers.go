// Package handlers provides HTTP handlers for derived ticker management
// and evaluation.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/domain"
	"github.com/aristath/quotefeed/internal/modules/derived"
)

// Handler handles derived ticker HTTP requests
type Handler struct {
	service *derived.Service
	log     zerolog.Logger
}

// NewHandler creates a new derived ticker handler
func NewHandler(service *derived.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "derived").Logger(),
	}
}

// CreateRequest is the body for creating a derived ticker
type CreateRequest struct {
	Ticker  string `json:"ticker"`
	Formula string `json:"formula"`
}

// HandleCreate handles POST /api/derived
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Ticker == "" || req.Formula == "" {
		http.Error(w, "ticker and formula are required", http.StatusBadRequest)
		return
	}

	err := h.service.Create(domain.DerivedTicker{Ticker: req.Ticker, Formula: req.Formula})
	if err != nil {
		var syntaxErr derived.ErrFormulaSyntax
		var cycleErr derived.ErrCircularReference
		switch {
		case errors.As(err, &syntaxErr):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.As(err, &cycleErr):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.log.Error().Err(err).Str("ticker", req.Ticker).Msg("Failed to store derived ticker")
			http.Error(w, "Failed to store derived ticker", http.StatusInternalServerError)
		}
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":  req.Ticker,
			"formula": req.Formula,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusCreated, response)
}

// HandleList handles GET /api/derived
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	defs, err := h.service.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list derived tickers")
		http.Error(w, "Failed to list derived tickers", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"derived_tickers": defs,
			"count":           len(defs),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleGet handles GET /api/derived/{ticker}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	dt, err := h.service.Get(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get derived ticker")
		http.Error(w, "Failed to get derived ticker", http.StatusInternalServerError)
		return
	}
	if dt == nil {
		http.Error(w, "derived ticker not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": dt,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleDelete handles DELETE /api/derived/{ticker}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	deleted, err := h.service.Delete(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to delete derived ticker")
		http.Error(w, "Failed to delete derived ticker", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "derived ticker not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":  ticker,
			"deleted": true,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleLatest handles GET /api/derived/{ticker}/latest
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	price, err := h.service.LatestPrice(r.Context(), ticker)
	if err != nil {
		h.writeEvalError(w, ticker, err)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"ticker": ticker,
			"price":  price,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleHistorical handles GET /api/derived/{ticker}/historical
func (h *Handler) HandleHistorical(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	points, err := h.service.HistoricalSeries(r.Context(), ticker)
	if err != nil {
		h.writeEvalError(w, ticker, err)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"ticker": ticker,
			"series": points,
			"count":  len(points),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

func (h *Handler) writeEvalError(w http.ResponseWriter, ticker string, err error) {
	var missingErr derived.ErrMissingUnderlying
	var cycleErr derived.ErrCircularReference
	var syntaxErr derived.ErrFormulaSyntax
	var evalErr derived.ErrFormulaEvaluation

	switch {
	case errors.As(err, &missingErr):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &syntaxErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &cycleErr), errors.As(err, &evalErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Derived evaluation failed")
		http.Error(w, "Failed to evaluate derived ticker", http.StatusBadGateway)
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
