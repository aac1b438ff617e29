// Package handlers provides HTTP handlers for latest-price lookups and
// cache introspection.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/cache"
	"github.com/aristath/quotefeed/internal/modules/catalog"
	"github.com/aristath/quotefeed/internal/modules/derived"
	"github.com/aristath/quotefeed/internal/modules/latest"
)

// PriceResolver resolves any ticker, base or derived, to a latest value
type PriceResolver interface {
	LatestPrice(ctx context.Context, ticker string) (float64, error)
}

// Handler handles latest-price HTTP requests
type Handler struct {
	resolver    PriceResolver
	cache       *cache.Cache
	refresh     *latest.RefreshService
	traffic     *latest.TrafficCounter
	trafficRepo *catalog.TrafficRepository
	log         zerolog.Logger
}

// NewHandler creates a new latest-price handler
func NewHandler(
	resolver PriceResolver,
	priceCache *cache.Cache,
	refresh *latest.RefreshService,
	traffic *latest.TrafficCounter,
	trafficRepo *catalog.TrafficRepository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		resolver:    resolver,
		cache:       priceCache,
		refresh:     refresh,
		traffic:     traffic,
		trafficRepo: trafficRepo,
		log:         log.With().Str("handler", "latest").Logger(),
	}
}

// HandleGetLatest handles GET /api/latest/{ticker}
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if ticker == "" {
		http.Error(w, "ticker is required", http.StatusBadRequest)
		return
	}

	price, err := h.resolver.LatestPrice(r.Context(), ticker)
	if err != nil {
		writeResolveError(w, h.log, ticker, err)
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

// HandleCacheInfo handles GET /api/cache/info
func (h *Handler) HandleCacheInfo(w http.ResponseWriter, r *http.Request) {
	entries := h.cache.Snapshot()

	var lastRefresh interface{}
	if t := h.refresh.LastRefresh(); !t.IsZero() {
		lastRefresh = t.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"entries":      entries,
			"count":        len(entries),
			"last_refresh": lastRefresh,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleTickerTraffic handles GET /api/ticker_traffic
func (h *Handler) HandleTickerTraffic(w http.ResponseWriter, r *http.Request) {
	// Flush pending in-memory counts so the ranking is current
	if err := h.traffic.Flush(); err != nil {
		h.log.Error().Err(err).Msg("Failed to flush traffic counts")
	}

	rows, err := h.trafficRepo.All()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read traffic counts")
		http.Error(w, "Failed to read traffic counts", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"traffic": rows,
			"count":   len(rows),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// writeResolveError maps resolution failures to HTTP statuses: unknown or
// unpriceable tickers are 404, formula problems 400/422, upstream fetch
// failures 502.
func writeResolveError(w http.ResponseWriter, log zerolog.Logger, ticker string, err error) {
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
		log.Error().Err(err).Str("ticker", ticker).Msg("Price resolution failed")
		http.Error(w, "Failed to resolve price", http.StatusBadGateway)
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
