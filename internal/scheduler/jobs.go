package scheduler

import (
	"context"

	"github.com/aristath/quotefeed/internal/modules/latest"
	"github.com/aristath/quotefeed/internal/modules/sync"
)

// CacheRefreshJob re-primes the latest-price cache
type CacheRefreshJob struct {
	Service *latest.RefreshService
}

func (j *CacheRefreshJob) Name() string { return "cache_refresh" }

func (j *CacheRefreshJob) Run() error {
	return j.Service.RefreshPrices(context.Background())
}

// CurrencyRefreshJob refreshes currency rates on a slower schedule than
// the main cache refresh, to respect the FX provider's quota
type CurrencyRefreshJob struct {
	Service *latest.RefreshService
}

func (j *CurrencyRefreshJob) Name() string { return "currency_refresh" }

func (j *CurrencyRefreshJob) Run() error {
	return j.Service.RefreshCurrencies(context.Background())
}

// TrafficFlushJob persists the in-memory query counters
type TrafficFlushJob struct {
	Counter *latest.TrafficCounter
}

func (j *TrafficFlushJob) Name() string { return "traffic_flush" }

func (j *TrafficFlushJob) Run() error {
	return j.Counter.Flush()
}

// DeltaSyncJob upserts the most recent history bars for every ticker
type DeltaSyncJob struct {
	Service *sync.Service
}

func (j *DeltaSyncJob) Name() string { return "delta_sync" }

func (j *DeltaSyncJob) Run() error {
	return j.Service.DeltaSync(context.Background())
}
