package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quotefeed/internal/database"
	"github.com/aristath/quotefeed/internal/domain"
)

var testLog = zerolog.New(nil).Level(zerolog.Disabled)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "market.db"),
		Name: "market",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

func TestQuoteRepositoryGetUnknown(t *testing.T) {
	db := newTestDB(t)
	repo := NewQuoteRepository(db.Conn(), testLog)

	qd, err := repo.Get("NOSUCH")
	require.NoError(t, err)
	assert.Nil(t, qd)
}

func TestQuoteRepositoryUpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewQuoteRepository(db.Conn(), testLog)

	def := domain.QuoteDefinition{
		Ticker:       "AAPLUSD",
		AssetType:    domain.AssetStock,
		Symbol:       "AAPL",
		QuoteCcy:     "USD",
		SourceTicker: "AAPL",
		Provider:     domain.ProviderYahoo,
	}
	require.NoError(t, repo.Upsert(def))

	got, err := repo.Get("AAPLUSD")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, def, *got)

	// Upsert replaces on the same ticker
	def.SourceTicker = "AAPL.NE"
	require.NoError(t, repo.Upsert(def))

	got, err = repo.Get("AAPLUSD")
	require.NoError(t, err)
	assert.Equal(t, "AAPL.NE", got.SourceTicker)
}

func TestQuoteRepositorySourceTickers(t *testing.T) {
	db := newTestDB(t)
	repo := NewQuoteRepository(db.Conn(), testLog)

	require.NoError(t, repo.Upsert(domain.QuoteDefinition{
		Ticker: "BTCUSDT", AssetType: domain.AssetCrypto, Symbol: "BTC",
		QuoteCcy: "USDT", SourceTicker: "BTCUSDT", Provider: domain.ProviderBinance,
	}))
	require.NoError(t, repo.Upsert(domain.QuoteDefinition{
		Ticker: "EURUSD", AssetType: domain.AssetCurrency, Symbol: "EUR",
		QuoteCcy: "USD", SourceTicker: "EUR", Provider: domain.ProviderAlphaVantage,
	}))

	result, err := repo.SourceTickers([]string{"BTCUSDT", "EURUSD", "UNKNOWN"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"BTCUSDT": "BTCUSDT", "EURUSD": "EUR"}, result)

	empty, err := repo.SourceTickers(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestQuoteRepositorySearchOrdering(t *testing.T) {
	db := newTestDB(t)
	repo := NewQuoteRepository(db.Conn(), testLog)

	for _, ticker := range []string{"ETHUSDT", "BETHUSDT", "ETH", "NOTRELATED"} {
		require.NoError(t, repo.Upsert(domain.QuoteDefinition{
			Ticker: ticker, AssetType: domain.AssetCrypto, Symbol: ticker,
			QuoteCcy: "USDT", SourceTicker: ticker, Provider: domain.ProviderBinance,
		}))
	}

	defs, err := repo.Search("eth", "", 10, 0)
	require.NoError(t, err)
	require.Len(t, defs, 3)

	// Exact match first, then prefix, then contains
	assert.Equal(t, "ETH", defs[0].Ticker)
	assert.Equal(t, "ETHUSDT", defs[1].Ticker)
	assert.Equal(t, "BETHUSDT", defs[2].Ticker)

	// Paging
	page, err := repo.Search("eth", "", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "ETHUSDT", page[0].Ticker)
}

func TestQuoteRepositoryTickersByType(t *testing.T) {
	db := newTestDB(t)
	repo := NewQuoteRepository(db.Conn(), testLog)

	require.NoError(t, repo.Upsert(domain.QuoteDefinition{
		Ticker: "AAPLUSD", AssetType: domain.AssetStock, Symbol: "AAPL",
		QuoteCcy: "USD", SourceTicker: "AAPL", Provider: domain.ProviderYahoo,
	}))
	require.NoError(t, repo.Upsert(domain.QuoteDefinition{
		Ticker: "BTCUSDT", AssetType: domain.AssetCrypto, Symbol: "BTC",
		QuoteCcy: "USDT", SourceTicker: "BTCUSDT", Provider: domain.ProviderBinance,
	}))

	stocks, err := repo.TickersByType(domain.AssetStock)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPLUSD"}, stocks)

	counts, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"STOCK": 1, "CRYPTO": 1}, counts)
}

func TestAssetRepositoryUpsertAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewAssetRepository(db.Conn(), testLog)

	require.NoError(t, repo.Upsert(domain.Asset{
		Type: domain.AssetCrypto, Symbol: "BTC", Name: "Bitcoin", Currency: "USD",
	}))
	require.NoError(t, repo.Upsert(domain.Asset{
		Type: domain.AssetStock, Symbol: "AAPL", Name: "Apple Inc.", Currency: "USD",
	}))

	// Second upsert of the same key updates, not duplicates
	require.NoError(t, repo.Upsert(domain.Asset{
		Type: domain.AssetCrypto, Symbol: "BTC", Name: "Bitcoin (BTC)", Currency: "USD",
	}))

	all, err := repo.List("")
	require.NoError(t, err)
	require.Len(t, all, 2)

	cryptos, err := repo.List("CRYPTO")
	require.NoError(t, err)
	require.Len(t, cryptos, 1)
	assert.Equal(t, "Bitcoin (BTC)", cryptos[0].Name)
	assert.False(t, cryptos[0].CreatedAt.IsZero())
}

func TestOHLCVRepositoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	quotes := NewQuoteRepository(db.Conn(), testLog)
	repo := NewOHLCVRepository(db.Conn(), testLog)

	require.NoError(t, quotes.Upsert(domain.QuoteDefinition{
		Ticker: "BTCUSDT", AssetType: domain.AssetCrypto, Symbol: "BTC",
		QuoteCcy: "USDT", SourceTicker: "BTCUSDT", Provider: domain.ProviderBinance,
	}))

	volume := 1234.5
	bars := []domain.Bar{
		{Date: "2024-01-02", Open: 100, High: 110, Low: 95, Close: 105, Volume: &volume},
		{Date: "2024-01-01", Open: 90, High: 101, Low: 89, Close: 100},
	}
	require.NoError(t, repo.UpsertBars("BTCUSDT", bars))

	got, err := repo.Bars("BTCUSDT")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-01", got[0].Date, "bars come back oldest first")
	assert.Nil(t, got[0].Volume)
	require.NotNil(t, got[1].Volume)
	assert.Equal(t, 1234.5, *got[1].Volume)

	// Re-upserting the same date replaces the row
	require.NoError(t, repo.UpsertBars("BTCUSDT", []domain.Bar{
		{Date: "2024-01-02", Open: 100, High: 112, Low: 95, Close: 108},
	}))

	series, err := repo.CloseSeries("BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"2024-01-01": 100, "2024-01-02": 108}, series)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	min, max, err := repo.DateRange()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", min)
	assert.Equal(t, "2024-01-02", max)
}

func TestOHLCVRepositoryUnknownTicker(t *testing.T) {
	db := newTestDB(t)
	repo := NewOHLCVRepository(db.Conn(), testLog)

	series, err := repo.CloseSeries("NOSUCH")
	require.NoError(t, err)
	assert.Empty(t, series)

	bars, err := repo.Bars("NOSUCH")
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestSyncStateRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewSyncStateRepository(db.Conn(), testLog)

	state, err := repo.Get()
	require.NoError(t, err)
	assert.Nil(t, state.LastFullSync)
	assert.Nil(t, state.LastDeltaSync)

	full := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkFullSync(full))

	delta := full.Add(24 * time.Hour)
	require.NoError(t, repo.MarkDeltaSync(delta))

	state, err = repo.Get()
	require.NoError(t, err)
	require.NotNil(t, state.LastFullSync)
	require.NotNil(t, state.LastDeltaSync)
	assert.Equal(t, full, *state.LastFullSync)
	assert.Equal(t, delta, *state.LastDeltaSync)
}

func TestTrafficRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewTrafficRepository(db.Conn(), testLog)

	require.NoError(t, repo.IncrementBatch(map[domain.TrafficKey]int64{
		{Ticker: "AAPLUSD", AssetType: domain.AssetStock}: 3,
		{Ticker: "TSLAUSD", AssetType: domain.AssetStock}: 1,
		{Ticker: "BTCUSDT", AssetType: domain.AssetCrypto}: 7,
	}))
	require.NoError(t, repo.IncrementBatch(map[domain.TrafficKey]int64{
		{Ticker: "TSLAUSD", AssetType: domain.AssetStock}: 5,
	}))

	top, err := repo.TopTickers(domain.AssetStock, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"TSLAUSD"}, top)

	all, err := repo.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, TickerTraffic{Ticker: "BTCUSDT", AssetType: domain.AssetCrypto, Count: 7}, all[0])
	assert.Equal(t, int64(6), all[1].Count)
}
