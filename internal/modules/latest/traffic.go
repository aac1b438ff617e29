package latest

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/quotefeed/internal/domain"
	"github.com/aristath/quotefeed/internal/modules/catalog"
)

// TrafficCounter accumulates per-ticker query counts in memory and
// flushes them to the catalog periodically. Recording is cheap enough
// to sit on the latest-price hot path.
type TrafficCounter struct {
	mu     sync.Mutex
	counts map[domain.TrafficKey]int64
	repo   *catalog.TrafficRepository
	log    zerolog.Logger
}

// NewTrafficCounter creates a traffic counter backed by the given repository
func NewTrafficCounter(repo *catalog.TrafficRepository, log zerolog.Logger) *TrafficCounter {
	return &TrafficCounter{
		counts: make(map[domain.TrafficKey]int64),
		repo:   repo,
		log:    log.With().Str("component", "traffic_counter").Logger(),
	}
}

// Record notes one query for a ticker
func (c *TrafficCounter) Record(ticker string, assetType domain.AssetType) {
	c.mu.Lock()
	c.counts[domain.TrafficKey{Ticker: ticker, AssetType: assetType}]++
	c.mu.Unlock()
}

// Flush persists and resets the accumulated counts. On a write failure
// the counts are restored so the next flush retries them.
func (c *TrafficCounter) Flush() error {
	c.mu.Lock()
	pending := c.counts
	c.counts = make(map[domain.TrafficKey]int64)
	c.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	if err := c.repo.IncrementBatch(pending); err != nil {
		c.mu.Lock()
		for key, delta := range pending {
			c.counts[key] += delta
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// Pending returns the number of tickers with unflushed counts
func (c *TrafficCounter) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts)
}
