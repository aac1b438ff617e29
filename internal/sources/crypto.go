package sources

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/clients/binance"
	"github.com/aristath/quotefeed/internal/domain"
)

// CryptoSource serves crypto prices from the Binance spot API
type CryptoSource struct {
	client *binance.Client
	log    zerolog.Logger
}

// NewCryptoSource creates a crypto price source
func NewCryptoSource(client *binance.Client, log zerolog.Logger) *CryptoSource {
	return &CryptoSource{
		client: client,
		log:    log.With().Str("component", "crypto_source").Logger(),
	}
}

// LatestPrice fetches one symbol's current price
func (s *CryptoSource) LatestPrice(ctx context.Context, sourceTicker string) (domain.PriceResult, error) {
	return s.client.LatestPrice(ctx, sourceTicker)
}

// AllLatestPrices fetches every listed symbol's price in a single call
func (s *CryptoSource) AllLatestPrices(ctx context.Context) (map[string]float64, error) {
	return s.client.AllLatestPrices(ctx)
}
