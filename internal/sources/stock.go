package sources

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/clients/yahoo"
	"github.com/aristath/quotefeed/internal/domain"
)

// StockSource serves equity prices from Yahoo Finance
type StockSource struct {
	client    *yahoo.Client
	batchSize int
	log       zerolog.Logger
}

// NewStockSource creates a stock price source
func NewStockSource(client *yahoo.Client, batchSize int, log zerolog.Logger) *StockSource {
	return &StockSource{
		client:    client,
		batchSize: batchSize,
		log:       log.With().Str("component", "stock_source").Logger(),
	}
}

// LatestPrice fetches one symbol's current price
func (s *StockSource) LatestPrice(ctx context.Context, sourceTicker string) (domain.PriceResult, error) {
	return s.client.LatestPrice(ctx, sourceTicker)
}

// RefreshLatestPrices fetches prices for many symbols in chunked batch
// calls. Per-symbol outcomes are independent: symbols missing from a
// batch response map to NotFound, and a failed batch only drops its own
// symbols from the result.
func (s *StockSource) RefreshLatestPrices(ctx context.Context, sourceTickers []string) map[string]domain.PriceResult {
	results := make(map[string]domain.PriceResult, len(sourceTickers))

	for _, batch := range chunk(sourceTickers, s.batchSize) {
		quotes, err := s.client.Quotes(ctx, batch)
		if err != nil {
			s.log.Error().Err(err).Strs("tickers", batch).Msg("Batch quote fetch failed")
			continue
		}
		for _, ticker := range batch {
			q, ok := quotes[ticker]
			if !ok || q.RegularMarketPrice == nil {
				results[ticker] = domain.NotFound()
				continue
			}
			results[ticker] = domain.Found(*q.RegularMarketPrice)
		}
	}
	return results
}

// chunk splits tickers into batches of at most size elements
func chunk(tickers []string, size int) [][]string {
	if size <= 0 {
		size = len(tickers)
	}
	var batches [][]string
	for start := 0; start < len(tickers); start += size {
		end := start + size
		if end > len(tickers) {
			end = len(tickers)
		}
		batches = append(batches, tickers[start:end])
	}
	return batches
}
