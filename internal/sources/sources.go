// Package sources adapts the provider clients to a common latest-price
// interface keyed by source ticker. One adapter per provider family; each
// owns its provider's batching capabilities and not-found semantics.
package sources

import (
	"context"

	"github.com/aristath/quotefeed/internal/domain"
)

// Source resolves a provider-side ticker to a latest price. A NotFound
// result means the provider authoritatively does not know the symbol; an
// error means the fetch itself failed and nothing should be cached.
type Source interface {
	LatestPrice(ctx context.Context, sourceTicker string) (domain.PriceResult, error)
}

// Registry maps asset types to their price sources
type Registry struct {
	sources map[domain.AssetType]Source
}

// NewRegistry creates a registry from per-asset-type sources
func NewRegistry(stock, crypto, currency Source) *Registry {
	return &Registry{
		sources: map[domain.AssetType]Source{
			domain.AssetStock:    stock,
			domain.AssetCrypto:   crypto,
			domain.AssetCurrency: currency,
		},
	}
}

// For returns the source serving an asset type
func (r *Registry) For(assetType domain.AssetType) (Source, bool) {
	s, ok := r.sources[assetType]
	return s, ok
}
