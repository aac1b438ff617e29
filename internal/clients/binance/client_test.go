package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quotefeed/internal/clients/httpx"
	"github.com/aristath/quotefeed/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	c := New(httpx.New(log), log)
	c.SetBaseURL(server.URL)
	return c, server
}

func TestLatestPrice(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ticker/price", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"97123.45000000"}`))
	})

	result, err := c.LatestPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, result.IsFound())
	assert.Equal(t, 97123.45, result.Price)
}

func TestLatestPriceUnknownSymbol(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	result, err := c.LatestPrice(context.Background(), "NOSUCHUSDT")
	require.NoError(t, err)
	assert.Equal(t, domain.PriceNotFound, result.Status)
}

func TestLatestPriceServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.LatestPrice(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestAllLatestPrices(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","price":"97000.1"},
			{"symbol":"ETHUSDT","price":"3100.5"},
			{"symbol":"BROKEN","price":"n/a"}
		]`))
	})

	prices, err := c.AllLatestPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"BTCUSDT": 97000.1,
		"ETHUSDT": 3100.5,
	}, prices)
}

func TestKlinesPagination(t *testing.T) {
	day := int64(24 * 60 * 60 * 1000)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	page := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page++
		startTime := r.URL.Query().Get("startTime")

		var rows [][]interface{}
		switch page {
		case 1:
			assert.Equal(t, fmt.Sprintf("%d", start.UnixMilli()), startTime)
			rows = [][]interface{}{
				kline(start.UnixMilli(), "100", "110", "90", "105", "1000"),
				kline(start.UnixMilli()+day, "105", "115", "95", "108", "1100"),
			}
		case 2:
			// Next window starts just after the last open time
			assert.Equal(t, fmt.Sprintf("%d", start.UnixMilli()+day+1), startTime)
			rows = [][]interface{}{}
		}
		json.NewEncoder(w).Encode(rows)
	})

	bars, err := c.Klines(context.Background(), "BTCUSDT", start, start.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-01-01", bars[0].Date)
	assert.Equal(t, 105.0, bars[0].Close)
	assert.Equal(t, "2024-01-02", bars[1].Date)
	require.NotNil(t, bars[1].Volume)
	assert.Equal(t, 1100.0, *bars[1].Volume)
	assert.Equal(t, 2, page)
}

func TestKlinesUnknownSymbolIsEmpty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	bars, err := c.Klines(context.Background(), "NOSUCHUSDT", time.Now().Add(-24*time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func kline(openTime int64, open, high, low, close, volume string) []interface{} {
	return []interface{}{
		openTime, open, high, low, close, volume,
		openTime + 86399999, "0", 0, "0", "0", "0",
	}
}
