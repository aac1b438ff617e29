package latest

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/cache"
	"github.com/aristath/quotefeed/internal/domain"
	"github.com/aristath/quotefeed/internal/modules/catalog"
	"github.com/aristath/quotefeed/internal/sources"
)

// RefreshService keeps the cache warm in the background. Stocks are
// refreshed for the most-queried tickers only; crypto comes in one bulk
// call covering every listed symbol; currencies refresh on their own
// slower schedule because the provider is heavily rate limited.
type RefreshService struct {
	quotes      *catalog.QuoteRepository
	traffic     *catalog.TrafficRepository
	cache       *cache.Cache
	stocks      *sources.StockSource
	crypto      *sources.CryptoSource
	currencies  *sources.CurrencySource
	topN        int
	regularTTL  time.Duration
	notFoundTTL time.Duration
	log         zerolog.Logger

	mu          sync.Mutex
	lastRefresh time.Time
}

// NewRefreshService creates a cache refresh service
func NewRefreshService(
	quotes *catalog.QuoteRepository,
	traffic *catalog.TrafficRepository,
	priceCache *cache.Cache,
	stocks *sources.StockSource,
	crypto *sources.CryptoSource,
	currencies *sources.CurrencySource,
	topN int,
	regularTTL, notFoundTTL time.Duration,
	log zerolog.Logger,
) *RefreshService {
	return &RefreshService{
		quotes:      quotes,
		traffic:     traffic,
		cache:       priceCache,
		stocks:      stocks,
		crypto:      crypto,
		currencies:  currencies,
		topN:        topN,
		regularTTL:  regularTTL,
		notFoundTTL: notFoundTTL,
		log:         log.With().Str("service", "refresh").Logger(),
	}
}

// RefreshPrices warms the cache for the most-queried stocks and for all
// crypto symbols. Partial failures refresh what they can.
func (s *RefreshService) RefreshPrices(ctx context.Context) error {
	if err := s.refreshStocks(ctx); err != nil {
		s.log.Error().Err(err).Msg("Stock refresh failed")
	}
	if err := s.refreshCrypto(ctx); err != nil {
		s.log.Error().Err(err).Msg("Crypto refresh failed")
	}

	s.mu.Lock()
	s.lastRefresh = time.Now()
	s.mu.Unlock()
	return nil
}

// LastRefresh returns when the cache was last warmed, zero if never
func (s *RefreshService) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh
}

func (s *RefreshService) refreshStocks(ctx context.Context) error {
	top, err := s.traffic.TopTickers(domain.AssetStock, s.topN)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		return nil
	}

	sourceTickers, err := s.quotes.SourceTickers(top)
	if err != nil {
		return err
	}

	symbols := make([]string, 0, len(sourceTickers))
	for _, st := range sourceTickers {
		symbols = append(symbols, st)
	}

	results := s.stocks.RefreshLatestPrices(ctx, symbols)
	for symbol, result := range results {
		s.put(domain.ProviderYahoo, symbol, result)
	}

	s.log.Debug().Int("requested", len(symbols)).Int("refreshed", len(results)).Msg("Stock prices refreshed")
	return nil
}

func (s *RefreshService) refreshCrypto(ctx context.Context) error {
	prices, err := s.crypto.AllLatestPrices(ctx)
	if err != nil {
		return err
	}

	for symbol, price := range prices {
		s.put(domain.ProviderBinance, symbol, domain.Found(price))
	}

	s.log.Debug().Int("symbols", len(prices)).Msg("Crypto prices refreshed")
	return nil
}

// RefreshCurrencies warms the cache for every known currency pair
func (s *RefreshService) RefreshCurrencies(ctx context.Context) error {
	tickers, err := s.quotes.TickersByType(domain.AssetCurrency)
	if err != nil {
		return err
	}
	if len(tickers) == 0 {
		return nil
	}

	sourceTickers, err := s.quotes.SourceTickers(tickers)
	if err != nil {
		return err
	}

	codes := make([]string, 0, len(sourceTickers))
	for _, code := range sourceTickers {
		codes = append(codes, code)
	}

	results := s.currencies.RefreshLatestPrices(ctx, codes)
	for code, result := range results {
		s.put(domain.ProviderAlphaVantage, code, result)
	}

	s.log.Debug().Int("requested", len(codes)).Int("refreshed", len(results)).Msg("Currency rates refreshed")
	return nil
}

func (s *RefreshService) put(provider, sourceTicker string, result domain.PriceResult) {
	ttl := s.regularTTL
	if !result.IsFound() {
		ttl = s.notFoundTTL
	}
	s.cache.Put(cache.Key{Provider: provider, SourceTicker: sourceTicker}, result, ttl)
}
