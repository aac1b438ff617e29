// Package handlers provides HTTP handlers for browsing the catalog:
// assets, ticker search, stored history, and stats.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/modules/catalog"
	"github.com/aristath/quotefeed/internal/modules/derived"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

// Handler handles catalog HTTP requests
type Handler struct {
	assets  *catalog.AssetRepository
	quotes  *catalog.QuoteRepository
	ohlcv   *catalog.OHLCVRepository
	derived *derived.Repository
	state   *catalog.SyncStateRepository
	log     zerolog.Logger
}

// NewHandler creates a new catalog handler
func NewHandler(
	assets *catalog.AssetRepository,
	quotes *catalog.QuoteRepository,
	ohlcv *catalog.OHLCVRepository,
	derivedRepo *derived.Repository,
	state *catalog.SyncStateRepository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		assets:  assets,
		quotes:  quotes,
		ohlcv:   ohlcv,
		derived: derivedRepo,
		state:   state,
		log:     log.With().Str("handler", "catalog").Logger(),
	}
}

// HandleListAssets handles GET /api/assets
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	assetType := r.URL.Query().Get("asset_type")

	assets, err := h.assets.List(assetType)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list assets")
		http.Error(w, "Failed to list assets", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"assets": assets,
			"count":  len(assets),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleSearchTickers handles GET /api/tickers
func (h *Handler) HandleSearchTickers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	assetType := r.URL.Query().Get("asset_type")
	limit := queryInt(r, "limit", defaultSearchLimit)
	offset := queryInt(r, "offset", 0)

	if limit <= 0 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}
	if offset < 0 {
		offset = 0
	}

	defs, err := h.quotes.Search(query, assetType, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("Ticker search failed")
		http.Error(w, "Ticker search failed", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"tickers": defs,
			"count":   len(defs),
			"limit":   limit,
			"offset":  offset,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleHistorical handles GET /api/historical/{ticker}
func (h *Handler) HandleHistorical(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	bars, err := h.ohlcv.Bars(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to read history")
		http.Error(w, "Failed to read history", http.StatusInternalServerError)
		return
	}
	if len(bars) == 0 {
		http.Error(w, "no history for ticker", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"ticker": ticker,
			"bars":   bars,
			"count":  len(bars),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// unifiedTicker is one row of the combined base + derived listing
type unifiedTicker struct {
	Ticker    string `json:"ticker"`
	AssetType string `json:"asset_type,omitempty"`
	Kind      string `json:"kind"`
	Formula   string `json:"formula,omitempty"`
}

// HandleUnified handles GET /api/unified
func (h *Handler) HandleUnified(w http.ResponseWriter, r *http.Request) {
	defs, err := h.quotes.Search("", "", maxSearchLimit, queryInt(r, "offset", 0))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list quote definitions")
		http.Error(w, "Failed to list tickers", http.StatusInternalServerError)
		return
	}
	derivedDefs, err := h.derived.List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list derived tickers")
		http.Error(w, "Failed to list tickers", http.StatusInternalServerError)
		return
	}

	unified := make([]unifiedTicker, 0, len(defs)+len(derivedDefs))
	for _, qd := range defs {
		unified = append(unified, unifiedTicker{
			Ticker:    qd.Ticker,
			AssetType: string(qd.AssetType),
			Kind:      "quote",
		})
	}
	for _, dt := range derivedDefs {
		unified = append(unified, unifiedTicker{
			Ticker:  dt.Ticker,
			Kind:    "derived",
			Formula: dt.Formula,
		})
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"tickers": unified,
			"count":   len(unified),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

// HandleStats handles GET /api/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	assetCounts, err := h.assets.Count()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count assets")
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	quoteCounts, err := h.quotes.Count()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count quote definitions")
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	derivedCount, err := h.derived.Count()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count derived tickers")
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	barCount, err := h.ohlcv.Count()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count bars")
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}
	minDate, maxDate, err := h.ohlcv.DateRange()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read date range")
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}

	state, err := h.state.Get()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read sync state")
		http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
		return
	}

	var lastFull, lastDelta interface{}
	if state.LastFullSync != nil {
		lastFull = state.LastFullSync.Format(time.RFC3339)
	}
	if state.LastDeltaSync != nil {
		lastDelta = state.LastDeltaSync.Format(time.RFC3339)
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"assets":          assetCounts,
			"tickers":         quoteCounts,
			"derived_tickers": derivedCount,
			"ohlcv": map[string]interface{}{
				"bars":       barCount,
				"first_date": minDate,
				"last_date":  maxDate,
			},
			"sync": map[string]interface{}{
				"last_full_sync":  lastFull,
				"last_delta_sync": lastDelta,
			},
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	h.writeJSON(w, http.StatusOK, response)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
