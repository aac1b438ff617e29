package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quotefeed/internal/cache"
	"github.com/aristath/quotefeed/internal/database"
	"github.com/aristath/quotefeed/internal/domain"
	"github.com/aristath/quotefeed/internal/modules/catalog"
	"github.com/aristath/quotefeed/internal/modules/derived"
	"github.com/aristath/quotefeed/internal/modules/latest"
)

type stubResolver struct {
	prices map[string]float64
	err    error
}

func (s *stubResolver) LatestPrice(_ context.Context, ticker string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	price, ok := s.prices[ticker]
	if !ok {
		return 0, derived.ErrMissingUnderlying{Ticker: ticker}
	}
	return price, nil
}

type fixture struct {
	router  chi.Router
	cache   *cache.Cache
	traffic *latest.TrafficCounter
}

func newFixture(t *testing.T, resolver *stubResolver) *fixture {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "market.db"),
		Name: "market",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.New(nil).Level(zerolog.Disabled)
	priceCache := cache.New()
	trafficRepo := catalog.NewTrafficRepository(db.Conn(), log)
	counter := latest.NewTrafficCounter(trafficRepo, log)
	refresh := latest.NewRefreshService(nil, trafficRepo, priceCache, nil, nil, nil,
		10, 15*time.Minute, 24*time.Hour, log)

	r := chi.NewRouter()
	NewHandler(resolver, priceCache, refresh, counter, trafficRepo, log).RegisterRoutes(r)

	return &fixture{router: r, cache: priceCache, traffic: counter}
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGetLatest(t *testing.T) {
	f := newFixture(t, &stubResolver{prices: map[string]float64{"AAPLUSD": 150.5}})

	rec := f.get("/latest/AAPLUSD")
	assert.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Data struct {
			Ticker string  `json:"ticker"`
			Price  float64 `json:"price"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "AAPLUSD", response.Data.Ticker)
	assert.Equal(t, 150.5, response.Data.Price)
}

func TestGetLatestUnresolvableReturns404(t *testing.T) {
	f := newFixture(t, &stubResolver{})

	rec := f.get("/latest/NOPE")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLatestFetchFailureReturns502(t *testing.T) {
	f := newFixture(t, &stubResolver{err: assert.AnError})

	rec := f.get("/latest/AAPLUSD")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestCacheInfo(t *testing.T) {
	f := newFixture(t, &stubResolver{})
	f.cache.Put(cache.Key{Provider: domain.ProviderYahoo, SourceTicker: "AAPL"},
		domain.Found(150), 15*time.Minute)

	rec := f.get("/cache/info")
	assert.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Data struct {
			Count       int         `json:"count"`
			LastRefresh interface{} `json:"last_refresh"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 1, response.Data.Count)
	assert.Nil(t, response.Data.LastRefresh)
}

func TestTickerTrafficFlushesPendingCounts(t *testing.T) {
	f := newFixture(t, &stubResolver{})
	f.traffic.Record("BTCUSDT", domain.AssetCrypto)
	f.traffic.Record("BTCUSDT", domain.AssetCrypto)

	rec := f.get("/ticker_traffic")
	assert.Equal(t, http.StatusOK, rec.Code)

	var response struct {
		Data struct {
			Traffic []catalog.TickerTraffic `json:"traffic"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Data.Traffic, 1)
	assert.Equal(t, "BTCUSDT", response.Data.Traffic[0].Ticker)
	assert.Equal(t, int64(2), response.Data.Traffic[0].Count)
}
