package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/quotefeed/internal/clients/yahoo"
	"github.com/aristath/quotefeed/internal/domain"
)

// Logical tickers are composites of the provider symbol and the quote
// currency: AAPL quoted in USD becomes AAPLUSD, BTC on the USDT market
// becomes BTCUSDT, EUR against USD becomes EURUSD.

// quoteCurrency resolves the quote currency of a stock snapshot, letting
// the exchange override the reported currency where Yahoo is unreliable
func quoteCurrency(q yahoo.Quote) string {
	if ccy, ok := exchangeCurrency[q.Exchange]; ok {
		return ccy
	}
	return strings.ToUpper(q.Currency)
}

// RegisterStock adds a stock to the catalog by its Yahoo symbol and syncs
// its full history. Returns the composite logical ticker.
func (s *Service) RegisterStock(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol must not be empty")
	}

	quotes, err := s.yahoo.Quotes(ctx, []string{symbol})
	if err != nil {
		return "", err
	}
	q, ok := quotes[symbol]
	if !ok {
		return "", fmt.Errorf("yahoo does not know symbol %s", symbol)
	}

	ccy := quoteCurrency(q)
	if ccy == "" {
		return "", fmt.Errorf("no quote currency for symbol %s", symbol)
	}

	name := q.LongName
	if name == "" {
		name = q.ShortName
	}
	if err := s.assets.Upsert(domain.Asset{
		Type:     domain.AssetStock,
		Symbol:   symbol,
		Name:     name,
		Currency: ccy,
	}); err != nil {
		return "", err
	}

	qd := domain.QuoteDefinition{
		Ticker:       symbol + ccy,
		AssetType:    domain.AssetStock,
		Symbol:       symbol,
		QuoteCcy:     ccy,
		SourceTicker: symbol,
		Provider:     domain.ProviderYahoo,
	}
	if err := s.quotes.Upsert(qd); err != nil {
		return "", err
	}

	if err := s.syncDefinition(ctx, qd, true); err != nil {
		s.log.Error().Err(err).Str("ticker", qd.Ticker).Msg("Initial history sync failed")
	}
	return qd.Ticker, nil
}

// RegisterCrypto adds a coin traded against USDT on the exchange and
// syncs its full kline history
func (s *Service) RegisterCrypto(ctx context.Context, symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol must not be empty")
	}

	if err := s.assets.Upsert(domain.Asset{
		Type:     domain.AssetCrypto,
		Symbol:   symbol,
		Currency: "USDT",
	}); err != nil {
		return "", err
	}

	composite := symbol + "USDT"
	qd := domain.QuoteDefinition{
		Ticker:       composite,
		AssetType:    domain.AssetCrypto,
		Symbol:       symbol,
		QuoteCcy:     "USDT",
		SourceTicker: composite,
		Provider:     domain.ProviderBinance,
	}
	if err := s.quotes.Upsert(qd); err != nil {
		return "", err
	}

	if err := s.syncDefinition(ctx, qd, true); err != nil {
		s.log.Error().Err(err).Str("ticker", qd.Ticker).Msg("Initial history sync failed")
	}
	return qd.Ticker, nil
}

// RegisterCurrency adds an ISO currency code quoted against USD and
// syncs its full FX history
func (s *Service) RegisterCurrency(ctx context.Context, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("currency code must not be empty")
	}

	if err := s.assets.Upsert(domain.Asset{
		Type:     domain.AssetCurrency,
		Symbol:   code,
		Currency: "USD",
	}); err != nil {
		return "", err
	}

	qd := domain.QuoteDefinition{
		Ticker:       code + "USD",
		AssetType:    domain.AssetCurrency,
		Symbol:       code,
		QuoteCcy:     "USD",
		SourceTicker: code,
		Provider:     domain.ProviderAlphaVantage,
	}
	if err := s.quotes.Upsert(qd); err != nil {
		return "", err
	}

	if err := s.syncDefinition(ctx, qd, true); err != nil {
		s.log.Error().Err(err).Str("ticker", qd.Ticker).Msg("Initial history sync failed")
	}
	return qd.Ticker, nil
}
