package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quotefeed/internal/clients/alphavantage"
	"github.com/aristath/quotefeed/internal/clients/httpx"
	"github.com/aristath/quotefeed/internal/clients/yahoo"
	"github.com/aristath/quotefeed/internal/domain"
)

var testLog = zerolog.New(nil).Level(zerolog.Disabled)

func TestChunk(t *testing.T) {
	tickers := []string{"A", "B", "C", "D", "E"}

	batches := chunk(tickers, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"A", "B"}, batches[0])
	assert.Equal(t, []string{"E"}, batches[2])

	assert.Len(t, chunk(tickers, 0), 1, "non-positive size means one batch")
	assert.Empty(t, chunk(nil, 3))
}

func TestStockRefreshBatchIndependence(t *testing.T) {
	// First batch succeeds with one symbol missing; second batch fails hard
	call := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call++
		if call == 1 {
			w.Write([]byte(`{"quoteResponse":{"result":[
				{"symbol":"TSLA","regularMarketPrice":250.5,"currency":"USD"}
			],"error":null}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := yahoo.New(httpx.New(testLog, httpx.WithMaxAttempts(1)), testLog)
	client.SetBaseURL(server.URL)
	source := NewStockSource(client, 2, testLog)

	results := source.RefreshLatestPrices(context.Background(), []string{"TSLA", "NOSUCH", "AAPL"})

	require.Contains(t, results, "TSLA")
	assert.Equal(t, 250.5, results["TSLA"].Price)

	require.Contains(t, results, "NOSUCH")
	assert.Equal(t, domain.PriceNotFound, results["NOSUCH"].Status)

	// AAPL was in the failed second batch: no outcome recorded at all
	assert.NotContains(t, results, "AAPL")
}

func TestCurrencyIdentityPair(t *testing.T) {
	// No server: an outbound call would fail, proving USD short-circuits
	client := alphavantage.New("key", httpx.New(testLog, httpx.WithMaxAttempts(1)), testLog)
	client.SetBaseURL("http://127.0.0.1:0")
	source := NewCurrencySource(client, testLog)

	result, err := source.LatestPrice(context.Background(), "USD")
	require.NoError(t, err)
	assert.True(t, result.IsFound())
	assert.Equal(t, 1.0, result.Price)
}

func TestCurrencyRefreshSkipsFailedCodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("from_currency") == "EUR" {
			w.Write([]byte(`{"Realtime Currency Exchange Rate":{"5. Exchange Rate":"1.0845"}}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := alphavantage.New("key", httpx.New(testLog, httpx.WithMaxAttempts(1)), testLog)
	client.SetBaseURL(server.URL)
	source := NewCurrencySource(client, testLog)

	results := source.RefreshLatestPrices(context.Background(), []string{"EUR", "GBP", "USD"})

	assert.Equal(t, 1.0845, results["EUR"].Price)
	assert.NotContains(t, results, "GBP")
	assert.Equal(t, 1.0, results["USD"].Price)
}

func TestRegistryDispatch(t *testing.T) {
	stock := NewStockSource(nil, 15, testLog)
	crypto := NewCryptoSource(nil, testLog)
	currency := NewCurrencySource(nil, testLog)

	registry := NewRegistry(stock, crypto, currency)

	s, ok := registry.For(domain.AssetCrypto)
	require.True(t, ok)
	assert.Equal(t, crypto, s)

	_, ok = registry.For(domain.AssetType("BOND"))
	assert.False(t, ok)
}
