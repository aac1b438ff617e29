package sources

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/clients/alphavantage"
	"github.com/aristath/quotefeed/internal/domain"
)

// CurrencySource serves currency rates against USD from Alpha Vantage.
// Source tickers are ISO currency codes; the quoted price is the
// code-to-USD rate.
type CurrencySource struct {
	client *alphavantage.Client
	log    zerolog.Logger
}

// NewCurrencySource creates a currency rate source
func NewCurrencySource(client *alphavantage.Client, log zerolog.Logger) *CurrencySource {
	return &CurrencySource{
		client: client,
		log:    log.With().Str("component", "currency_source").Logger(),
	}
}

// LatestPrice fetches the code-to-USD rate. The identity pair costs no
// outbound call.
func (s *CurrencySource) LatestPrice(ctx context.Context, sourceTicker string) (domain.PriceResult, error) {
	if sourceTicker == "USD" {
		return domain.Found(1.0), nil
	}
	return s.client.ExchangeRate(ctx, sourceTicker, "USD")
}

// RefreshLatestPrices fetches rates for many codes sequentially. The
// provider has no batch endpoint; a failed code is dropped from the
// result without aborting the rest.
func (s *CurrencySource) RefreshLatestPrices(ctx context.Context, codes []string) map[string]domain.PriceResult {
	results := make(map[string]domain.PriceResult, len(codes))
	for _, code := range codes {
		result, err := s.LatestPrice(ctx, code)
		if err != nil {
			s.log.Error().Err(err).Str("code", code).Msg("Currency rate fetch failed")
			continue
		}
		results[code] = result
	}
	return results
}
