// Package latest resolves logical tickers to current prices through the
// TTL cache, falling back to the provider sources on a miss.
package latest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/cache"
	"github.com/aristath/quotefeed/internal/domain"
	"github.com/aristath/quotefeed/internal/modules/catalog"
	"github.com/aristath/quotefeed/internal/sources"
)

// Resolver serves latest prices cache-aside. Lookups hit the cache
// first; on a miss the provider source is queried and the outcome is
// written back, not-found sentinels included. A fetch failure is never
// cached; if a stale entry exists it is served instead of the error.
type Resolver struct {
	quotes      *catalog.QuoteRepository
	cache       *cache.Cache
	sources     *sources.Registry
	traffic     *TrafficCounter
	regularTTL  time.Duration
	notFoundTTL time.Duration
	log         zerolog.Logger
}

// NewResolver creates a latest-price resolver
func NewResolver(
	quotes *catalog.QuoteRepository,
	priceCache *cache.Cache,
	registry *sources.Registry,
	traffic *TrafficCounter,
	regularTTL, notFoundTTL time.Duration,
	log zerolog.Logger,
) *Resolver {
	return &Resolver{
		quotes:      quotes,
		cache:       priceCache,
		sources:     registry,
		traffic:     traffic,
		regularTTL:  regularTTL,
		notFoundTTL: notFoundTTL,
		log:         log.With().Str("service", "latest").Logger(),
	}
}

// LatestPrice resolves one logical ticker. NotFound covers both a ticker
// with no quote definition (no adapter call is made) and a symbol the
// provider authoritatively does not know.
func (r *Resolver) LatestPrice(ctx context.Context, ticker string) (domain.PriceResult, error) {
	qd, err := r.quotes.Get(ticker)
	if err != nil {
		return domain.PriceResult{}, err
	}
	if qd == nil {
		return domain.NotFound(), nil
	}

	r.traffic.Record(ticker, qd.AssetType)

	// Capture any expired entry before Get evicts it; it is the fallback
	// when the refetch fails.
	key := cache.Key{Provider: qd.Provider, SourceTicker: qd.SourceTicker}
	stale, hasStale := r.cache.GetStale(key)
	if entry, ok := r.cache.Get(key); ok {
		return entry.Result, nil
	}

	source, ok := r.sources.For(qd.AssetType)
	if !ok {
		return domain.PriceResult{}, fmt.Errorf("no price source for asset type %s", qd.AssetType)
	}

	result, err := source.LatestPrice(ctx, qd.SourceTicker)
	if err != nil {
		if hasStale {
			r.log.Warn().Err(err).Str("ticker", ticker).Msg("Fetch failed, serving stale price")
			return stale.Result, nil
		}
		return domain.PriceResult{}, fmt.Errorf("failed to fetch price for %s: %w", ticker, err)
	}

	r.cache.Put(key, result, r.ttlFor(result))
	return result, nil
}

func (r *Resolver) ttlFor(result domain.PriceResult) time.Duration {
	if result.IsFound() {
		return r.regularTTL
	}
	return r.notFoundTTL
}
