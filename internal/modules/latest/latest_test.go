package latest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/quotefeed/internal/cache"
	"github.com/aristath/quotefeed/internal/clients/binance"
	"github.com/aristath/quotefeed/internal/clients/httpx"
	"github.com/aristath/quotefeed/internal/clients/yahoo"
	"github.com/aristath/quotefeed/internal/database"
	"github.com/aristath/quotefeed/internal/domain"
	"github.com/aristath/quotefeed/internal/modules/catalog"
	"github.com/aristath/quotefeed/internal/sources"
)

var testLog = zerolog.New(nil).Level(zerolog.Disabled)

// stubSource counts calls and replays canned outcomes
type stubSource struct {
	calls   int
	result  domain.PriceResult
	err     error
	perCall []domain.PriceResult
}

func (s *stubSource) LatestPrice(_ context.Context, _ string) (domain.PriceResult, error) {
	s.calls++
	if s.err != nil {
		return domain.PriceResult{}, s.err
	}
	if len(s.perCall) > 0 {
		result := s.perCall[0]
		if len(s.perCall) > 1 {
			s.perCall = s.perCall[1:]
		}
		return result, nil
	}
	return s.result, nil
}

type fixture struct {
	db       *database.DB
	quotes   *catalog.QuoteRepository
	traffic  *TrafficCounter
	cache    *cache.Cache
	stock    *stubSource
	crypto   *stubSource
	currency *stubSource
	resolver *Resolver
}

func newFixture(t *testing.T, now func() time.Time) *fixture {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "market.db"),
		Name: "market",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	f := &fixture{
		db:       db,
		quotes:   catalog.NewQuoteRepository(db.Conn(), testLog),
		traffic:  NewTrafficCounter(catalog.NewTrafficRepository(db.Conn(), testLog), testLog),
		stock:    &stubSource{},
		crypto:   &stubSource{},
		currency: &stubSource{},
	}
	if now != nil {
		f.cache = cache.NewWithClock(now)
	} else {
		f.cache = cache.New()
	}

	registry := sources.NewRegistry(f.stock, f.crypto, f.currency)
	f.resolver = NewResolver(f.quotes, f.cache, registry, f.traffic,
		15*time.Minute, 1440*time.Minute, testLog)
	return f
}

func (f *fixture) define(t *testing.T, ticker string, assetType domain.AssetType, sourceTicker, provider string) {
	t.Helper()
	require.NoError(t, f.quotes.Upsert(domain.QuoteDefinition{
		Ticker:       ticker,
		AssetType:    assetType,
		Symbol:       ticker,
		QuoteCcy:     "USD",
		SourceTicker: sourceTicker,
		Provider:     provider,
	}))
}

func TestResolverCacheHitAvoidsSecondFetch(t *testing.T) {
	f := newFixture(t, nil)
	f.define(t, "AAPLUSD", domain.AssetStock, "AAPL", domain.ProviderYahoo)
	f.stock.result = domain.Found(150)

	result, err := f.resolver.LatestPrice(context.Background(), "AAPLUSD")
	require.NoError(t, err)
	assert.Equal(t, 150.0, result.Price)

	result, err = f.resolver.LatestPrice(context.Background(), "AAPLUSD")
	require.NoError(t, err)
	assert.Equal(t, 150.0, result.Price)

	assert.Equal(t, 1, f.stock.calls)
}

func TestResolverUnknownTicker(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.resolver.LatestPrice(context.Background(), "NOSUCH")
	require.NoError(t, err)
	assert.Equal(t, domain.PriceNotFound, result.Status)

	assert.Zero(t, f.stock.calls, "unknown tickers never reach a source")
	assert.Zero(t, f.traffic.Pending(), "unknown tickers are not counted as traffic")
}

func TestResolverNotFoundCachedLonger(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, func() time.Time { return now })
	f.define(t, "GHOSTUSD", domain.AssetStock, "GHOST", domain.ProviderYahoo)
	f.stock.result = domain.NotFound()

	result, err := f.resolver.LatestPrice(context.Background(), "GHOSTUSD")
	require.NoError(t, err)
	assert.Equal(t, domain.PriceNotFound, result.Status)

	// Well past the regular TTL, still inside the not-found TTL
	now = now.Add(2 * time.Hour)
	result, err = f.resolver.LatestPrice(context.Background(), "GHOSTUSD")
	require.NoError(t, err)
	assert.Equal(t, domain.PriceNotFound, result.Status)
	assert.Equal(t, 1, f.stock.calls)
}

func TestResolverExpiredEntryRefetched(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, func() time.Time { return now })
	f.define(t, "AAPLUSD", domain.AssetStock, "AAPL", domain.ProviderYahoo)
	f.stock.perCall = []domain.PriceResult{domain.Found(150), domain.Found(155)}

	_, err := f.resolver.LatestPrice(context.Background(), "AAPLUSD")
	require.NoError(t, err)

	now = now.Add(16 * time.Minute)
	result, err := f.resolver.LatestPrice(context.Background(), "AAPLUSD")
	require.NoError(t, err)
	assert.Equal(t, 155.0, result.Price)
	assert.Equal(t, 2, f.stock.calls)
}

func TestResolverServesStaleOnFetchFailure(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, func() time.Time { return now })
	f.define(t, "AAPLUSD", domain.AssetStock, "AAPL", domain.ProviderYahoo)
	f.stock.result = domain.Found(150)

	_, err := f.resolver.LatestPrice(context.Background(), "AAPLUSD")
	require.NoError(t, err)

	// Expire the entry, then make the source fail
	now = now.Add(16 * time.Minute)
	f.stock.err = errors.New("upstream down")

	result, err := f.resolver.LatestPrice(context.Background(), "AAPLUSD")
	require.NoError(t, err)
	assert.Equal(t, 150.0, result.Price, "stale price preferred over an error")
	assert.Equal(t, 2, f.stock.calls, "the refetch was attempted before degrading")

	// Once the source recovers, the next lookup replaces the stale entry
	f.stock.err = nil
	f.stock.result = domain.Found(160)

	result, err = f.resolver.LatestPrice(context.Background(), "AAPLUSD")
	require.NoError(t, err)
	assert.Equal(t, 160.0, result.Price)
}

func TestResolverFetchFailureWithoutStale(t *testing.T) {
	f := newFixture(t, nil)
	f.define(t, "AAPLUSD", domain.AssetStock, "AAPL", domain.ProviderYahoo)
	f.stock.err = errors.New("upstream down")

	_, err := f.resolver.LatestPrice(context.Background(), "AAPLUSD")
	require.Error(t, err)

	// Failures are never cached
	assert.Zero(t, f.cache.Len())
}

func TestResolverRecordsTraffic(t *testing.T) {
	f := newFixture(t, nil)
	f.define(t, "AAPLUSD", domain.AssetStock, "AAPL", domain.ProviderYahoo)
	f.stock.result = domain.Found(150)

	for i := 0; i < 3; i++ {
		_, err := f.resolver.LatestPrice(context.Background(), "AAPLUSD")
		require.NoError(t, err)
	}

	require.NoError(t, f.traffic.Flush())

	repo := catalog.NewTrafficRepository(f.db.Conn(), testLog)
	all, err := repo.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(3), all[0].Count)
}

func TestRefreshServiceWarmsCache(t *testing.T) {
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "market.db"),
		Name: "market",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	quotes := catalog.NewQuoteRepository(db.Conn(), testLog)
	trafficRepo := catalog.NewTrafficRepository(db.Conn(), testLog)

	require.NoError(t, quotes.Upsert(domain.QuoteDefinition{
		Ticker: "AAPLUSD", AssetType: domain.AssetStock, Symbol: "AAPL",
		QuoteCcy: "USD", SourceTicker: "AAPL", Provider: domain.ProviderYahoo,
	}))
	require.NoError(t, trafficRepo.IncrementBatch(map[domain.TrafficKey]int64{
		{Ticker: "AAPLUSD", AssetType: domain.AssetStock}: 10,
	}))

	yahooServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse":{"result":[
			{"symbol":"AAPL","regularMarketPrice":151.25,"currency":"USD"}
		],"error":null}}`))
	}))
	defer yahooServer.Close()

	binanceServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"symbol":"BTCUSDT","price":"60123.45"}]`))
	}))
	defer binanceServer.Close()

	yahooClient := yahoo.New(httpx.New(testLog, httpx.WithMaxAttempts(1)), testLog)
	yahooClient.SetBaseURL(yahooServer.URL)
	binanceClient := binance.New(httpx.New(testLog, httpx.WithMaxAttempts(1)), testLog)
	binanceClient.SetBaseURL(binanceServer.URL)

	priceCache := cache.New()
	svc := NewRefreshService(
		quotes, trafficRepo, priceCache,
		sources.NewStockSource(yahooClient, 15, testLog),
		sources.NewCryptoSource(binanceClient, testLog),
		sources.NewCurrencySource(nil, testLog),
		100, 15*time.Minute, 1440*time.Minute, testLog,
	)

	require.NoError(t, svc.RefreshPrices(context.Background()))

	entry, ok := priceCache.Get(cache.Key{Provider: domain.ProviderYahoo, SourceTicker: "AAPL"})
	require.True(t, ok)
	assert.Equal(t, 151.25, entry.Result.Price)

	entry, ok = priceCache.Get(cache.Key{Provider: domain.ProviderBinance, SourceTicker: "BTCUSDT"})
	require.True(t, ok)
	assert.Equal(t, 60123.45, entry.Result.Price)
}
