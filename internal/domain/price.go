package domain

// PriceStatus tags the outcome of a provider lookup
type PriceStatus int

const (
	// PriceFound means the provider returned a numeric price
	PriceFound PriceStatus = iota
	// PriceNotFound means the provider authoritatively does not know the
	// symbol. This is a result, not an error: it is cached with a long TTL
	// so we stop asking for symbols that consistently 404.
	PriceNotFound
)

// PriceResult is the outcome of a latest-price lookup. Transport and
// provider failures are returned as errors alongside it, never encoded in
// the result itself.
type PriceResult struct {
	Status PriceStatus
	Price  float64
}

// Found wraps a numeric price
func Found(price float64) PriceResult {
	return PriceResult{Status: PriceFound, Price: price}
}

// NotFound is the negative sentinel
func NotFound() PriceResult {
	return PriceResult{Status: PriceNotFound}
}

// IsFound reports whether the result carries a price
func (r PriceResult) IsFound() bool {
	return r.Status == PriceFound
}
