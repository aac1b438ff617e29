// Package sync populates the catalog from the providers: asset metadata,
// quote definitions, and OHLCV history, in full or delta mode.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/clients/alphavantage"
	"github.com/aristath/quotefeed/internal/clients/binance"
	"github.com/aristath/quotefeed/internal/clients/coingecko"
	"github.com/aristath/quotefeed/internal/clients/yahoo"
	"github.com/aristath/quotefeed/internal/domain"
	"github.com/aristath/quotefeed/internal/modules/catalog"
)

// deltaWindow is how far back a delta sync reaches. Two days covers the
// current bar plus the previous one that may have settled since the
// last run.
const deltaWindow = 48 * time.Hour

// exchangeCurrency overrides the quote currency for exchanges whose
// Yahoo quotes report it inconsistently
var exchangeCurrency = map[string]string{
	"NMS": "USD",
	"NYQ": "USD",
	"SET": "THB",
}

// Service syncs the catalog against the providers
type Service struct {
	assets       *catalog.AssetRepository
	quotes       *catalog.QuoteRepository
	ohlcv        *catalog.OHLCVRepository
	state        *catalog.SyncStateRepository
	yahoo        *yahoo.Client
	binance      *binance.Client
	coingecko    *coingecko.Client
	alphavantage *alphavantage.Client

	historicalStart time.Time
	requestDelay    time.Duration
	batchSize       int

	now   func() time.Time
	sleep func(time.Duration)
	log   zerolog.Logger
}

// NewService creates a sync service
func NewService(
	assets *catalog.AssetRepository,
	quotes *catalog.QuoteRepository,
	ohlcv *catalog.OHLCVRepository,
	state *catalog.SyncStateRepository,
	yahooClient *yahoo.Client,
	binanceClient *binance.Client,
	coingeckoClient *coingecko.Client,
	alphavantageClient *alphavantage.Client,
	historicalStart time.Time,
	requestDelay time.Duration,
	batchSize int,
	log zerolog.Logger,
) *Service {
	return &Service{
		assets:          assets,
		quotes:          quotes,
		ohlcv:           ohlcv,
		state:           state,
		yahoo:           yahooClient,
		binance:         binanceClient,
		coingecko:       coingeckoClient,
		alphavantage:    alphavantageClient,
		historicalStart: historicalStart,
		requestDelay:    requestDelay,
		batchSize:       batchSize,
		now:             time.Now,
		sleep:           time.Sleep,
		log:             log.With().Str("service", "sync").Logger(),
	}
}

// FullSync rebuilds history from the configured start date for every
// asset type. Per-type failures are logged and do not abort the others.
func (s *Service) FullSync(ctx context.Context) error {
	s.log.Info().Msg("Full sync started")

	if err := s.syncCrypto(ctx, true); err != nil {
		s.log.Error().Err(err).Msg("Crypto sync failed")
	}
	if err := s.syncStocks(ctx, true); err != nil {
		s.log.Error().Err(err).Msg("Stock sync failed")
	}
	if err := s.syncCurrencies(ctx, true); err != nil {
		s.log.Error().Err(err).Msg("Currency sync failed")
	}

	if err := s.state.MarkFullSync(s.now()); err != nil {
		return err
	}
	s.log.Info().Msg("Full sync finished")
	return nil
}

// DeltaSync upserts the last two days of history for every known ticker
func (s *Service) DeltaSync(ctx context.Context) error {
	s.log.Info().Msg("Delta sync started")

	if err := s.syncCrypto(ctx, false); err != nil {
		s.log.Error().Err(err).Msg("Crypto delta sync failed")
	}
	if err := s.syncStocks(ctx, false); err != nil {
		s.log.Error().Err(err).Msg("Stock delta sync failed")
	}
	if err := s.syncCurrencies(ctx, false); err != nil {
		s.log.Error().Err(err).Msg("Currency delta sync failed")
	}

	if err := s.state.MarkDeltaSync(s.now()); err != nil {
		return err
	}
	s.log.Info().Msg("Delta sync finished")
	return nil
}

// SyncTicker syncs history for one known ticker
func (s *Service) SyncTicker(ctx context.Context, ticker string, full bool) error {
	qd, err := s.quotes.Get(ticker)
	if err != nil {
		return err
	}
	if qd == nil {
		return fmt.Errorf("unknown ticker %s", ticker)
	}
	return s.syncDefinition(ctx, *qd, full)
}

func (s *Service) window(full bool) (time.Time, time.Time) {
	end := s.now()
	if full {
		return s.historicalStart, end
	}
	return end.Add(-deltaWindow), end
}

func (s *Service) syncDefinition(ctx context.Context, qd domain.QuoteDefinition, full bool) error {
	start, end := s.window(full)

	var bars []domain.Bar
	var err error
	switch qd.AssetType {
	case domain.AssetStock:
		bars, err = s.yahoo.DailyHistory(ctx, qd.SourceTicker, start, end)
	case domain.AssetCrypto:
		bars, err = s.binance.Klines(ctx, qd.SourceTicker, start, end)
	case domain.AssetCurrency:
		bars, err = s.currencyHistory(ctx, qd.SourceTicker, full)
	default:
		return fmt.Errorf("no sync path for asset type %s", qd.AssetType)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch history for %s: %w", qd.Ticker, err)
	}

	bars = filterWindow(bars, start, end)
	if err := s.ohlcv.UpsertBars(qd.Ticker, bars); err != nil {
		return err
	}
	s.log.Debug().Str("ticker", qd.Ticker).Int("bars", len(bars)).Msg("History synced")
	return nil
}

// syncCrypto discovers the top-market-cap coins in full mode, then syncs
// kline history for every crypto definition. Binance calls are paced to
// stay under the unauthenticated request weight.
func (s *Service) syncCrypto(ctx context.Context, full bool) error {
	if full {
		coins, err := s.coingecko.TopMarkets(ctx)
		if err != nil {
			return err
		}
		for _, coin := range coins {
			symbol := strings.ToUpper(coin.Symbol)
			if err := s.assets.Upsert(domain.Asset{
				Type:     domain.AssetCrypto,
				Symbol:   symbol,
				Name:     coin.Name,
				Currency: "USDT",
			}); err != nil {
				return err
			}
			composite := symbol + "USDT"
			if err := s.quotes.Upsert(domain.QuoteDefinition{
				Ticker:       composite,
				AssetType:    domain.AssetCrypto,
				Symbol:       symbol,
				QuoteCcy:     "USDT",
				SourceTicker: composite,
				Provider:     domain.ProviderBinance,
			}); err != nil {
				return err
			}
		}
	}

	tickers, err := s.quotes.TickersByType(domain.AssetCrypto)
	if err != nil {
		return err
	}
	for _, ticker := range tickers {
		qd, err := s.quotes.Get(ticker)
		if err != nil {
			return err
		}
		if err := s.syncDefinition(ctx, *qd, full); err != nil {
			s.log.Error().Err(err).Str("ticker", ticker).Msg("Crypto history sync failed")
		}
		s.sleep(s.requestDelay)
	}
	return nil
}

// syncStocks refreshes asset metadata from batched quote calls in full
// mode, then syncs chart history per definition
func (s *Service) syncStocks(ctx context.Context, full bool) error {
	tickers, err := s.quotes.TickersByType(domain.AssetStock)
	if err != nil {
		return err
	}
	if len(tickers) == 0 {
		return nil
	}

	defs := make([]domain.QuoteDefinition, 0, len(tickers))
	for _, ticker := range tickers {
		qd, err := s.quotes.Get(ticker)
		if err != nil {
			return err
		}
		defs = append(defs, *qd)
	}

	if full {
		if err := s.refreshStockMetadata(ctx, defs); err != nil {
			s.log.Error().Err(err).Msg("Stock metadata refresh failed")
		}
	}

	for _, qd := range defs {
		if err := s.syncDefinition(ctx, qd, full); err != nil {
			s.log.Error().Err(err).Str("ticker", qd.Ticker).Msg("Stock history sync failed")
		}
		s.sleep(s.requestDelay)
	}
	return nil
}

func (s *Service) refreshStockMetadata(ctx context.Context, defs []domain.QuoteDefinition) error {
	for start := 0; start < len(defs); start += s.batchSize {
		end := start + s.batchSize
		if end > len(defs) {
			end = len(defs)
		}
		batch := defs[start:end]

		symbols := make([]string, len(batch))
		for i, qd := range batch {
			symbols[i] = qd.SourceTicker
		}

		quotes, err := s.yahoo.Quotes(ctx, symbols)
		if err != nil {
			return err
		}
		for _, qd := range batch {
			q, ok := quotes[qd.SourceTicker]
			if !ok {
				continue
			}
			name := q.LongName
			if name == "" {
				name = q.ShortName
			}
			if err := s.assets.Upsert(domain.Asset{
				Type:     domain.AssetStock,
				Symbol:   qd.Symbol,
				Name:     name,
				Currency: quoteCurrency(q),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) syncCurrencies(ctx context.Context, full bool) error {
	tickers, err := s.quotes.TickersByType(domain.AssetCurrency)
	if err != nil {
		return err
	}
	for _, ticker := range tickers {
		qd, err := s.quotes.Get(ticker)
		if err != nil {
			return err
		}
		if err := s.syncDefinition(ctx, *qd, full); err != nil {
			s.log.Error().Err(err).Str("ticker", ticker).Msg("Currency history sync failed")
		}
		s.sleep(s.requestDelay)
	}
	return nil
}

// currencyHistory fetches FX history for a code against USD. The USD
// identity pair gets a constant series of 1.0 without an outbound call.
func (s *Service) currencyHistory(ctx context.Context, code string, full bool) ([]domain.Bar, error) {
	if code == "USD" {
		return s.identityBars(full), nil
	}
	return s.alphavantage.FXDaily(ctx, code, "USD", full)
}

func (s *Service) identityBars(full bool) []domain.Bar {
	start, end := s.window(full)
	var bars []domain.Bar
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end); d = d.Add(24 * time.Hour) {
		bars = append(bars, domain.Bar{
			Date:  d.Format("2006-01-02"),
			Open:  1.0,
			High:  1.0,
			Low:   1.0,
			Close: 1.0,
		})
	}
	return bars
}

func filterWindow(bars []domain.Bar, start, end time.Time) []domain.Bar {
	startDate := start.UTC().Format("2006-01-02")
	endDate := end.UTC().Format("2006-01-02")

	kept := bars[:0]
	for _, bar := range bars {
		if bar.Date >= startDate && bar.Date <= endDate {
			kept = append(kept, bar)
		}
	}
	return kept
}
