// quotefeed aggregates market data: latest prices through a TTL cache,
// OHLCV history in SQLite, and derived tickers computed from formulas.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/quotefeed/internal/cache"
	"github.com/aristath/quotefeed/internal/clients/alphavantage"
	"github.com/aristath/quotefeed/internal/clients/binance"
	"github.com/aristath/quotefeed/internal/clients/coingecko"
	"github.com/aristath/quotefeed/internal/clients/httpx"
	"github.com/aristath/quotefeed/internal/clients/yahoo"
	"github.com/aristath/quotefeed/internal/config"
	"github.com/aristath/quotefeed/internal/database"
	"github.com/aristath/quotefeed/internal/modules/catalog"
	cataloghandlers "github.com/aristath/quotefeed/internal/modules/catalog/handlers"
	"github.com/aristath/quotefeed/internal/modules/derived"
	derivedhandlers "github.com/aristath/quotefeed/internal/modules/derived/handlers"
	"github.com/aristath/quotefeed/internal/modules/latest"
	latesthandlers "github.com/aristath/quotefeed/internal/modules/latest/handlers"
	syncsvc "github.com/aristath/quotefeed/internal/modules/sync"
	synchandlers "github.com/aristath/quotefeed/internal/modules/sync/handlers"
	"github.com/aristath/quotefeed/internal/scheduler"
	"github.com/aristath/quotefeed/internal/server"
	"github.com/aristath/quotefeed/internal/sources"
	"github.com/aristath/quotefeed/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "quotefeed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)
	log.Info().Int("port", cfg.Port).Str("data_dir", cfg.DataDir).Msg("Starting quotefeed")

	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "market.db"),
		Profile: database.ProfileStandard,
		Name:    "market",
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	// Repositories
	assetRepo := catalog.NewAssetRepository(db.Conn(), log)
	quoteRepo := catalog.NewQuoteRepository(db.Conn(), log)
	ohlcvRepo := catalog.NewOHLCVRepository(db.Conn(), log)
	stateRepo := catalog.NewSyncStateRepository(db.Conn(), log)
	trafficRepo := catalog.NewTrafficRepository(db.Conn(), log)
	derivedRepo := derived.NewRepository(db.Conn(), log)

	// Provider clients. Each gets its own paced HTTP helper so one
	// provider's throttling never stalls the others.
	yahooClient := yahoo.New(httpx.New(log, httpx.WithRateLimit(2, 1)), log)
	binanceClient := binance.New(httpx.New(log, httpx.WithRateLimit(5, 2)), log)
	coingeckoClient := coingecko.New(httpx.New(log, httpx.WithRateLimit(0.5, 1)), log)
	alphavantageClient := alphavantage.New(cfg.AlphaVantageAPIKey, httpx.New(log, httpx.WithRateLimit(0.2, 1)), log)

	// Price sources
	stockSource := sources.NewStockSource(yahooClient, cfg.MaxTickersPerRequest, log)
	cryptoSource := sources.NewCryptoSource(binanceClient, log)
	currencySource := sources.NewCurrencySource(alphavantageClient, log)
	registry := sources.NewRegistry(stockSource, cryptoSource, currencySource)

	// Services
	priceCache := cache.New()
	trafficCounter := latest.NewTrafficCounter(trafficRepo, log)
	resolver := latest.NewResolver(quoteRepo, priceCache, registry, trafficCounter,
		cfg.RegularTTL, cfg.NotFoundTTL, log)
	derivedService := derived.NewService(derivedRepo, resolver, ohlcvRepo, log)
	refreshService := latest.NewRefreshService(quoteRepo, trafficRepo, priceCache,
		stockSource, cryptoSource, currencySource,
		cfg.TopNTickers, cfg.RegularTTL, cfg.NotFoundTTL, log)

	historicalStart, err := time.Parse("2006-01-02", cfg.HistoricalStartDate)
	if err != nil {
		return fmt.Errorf("invalid historical start date: %w", err)
	}
	syncService := syncsvc.NewService(
		assetRepo, quoteRepo, ohlcvRepo, stateRepo,
		yahooClient, binanceClient, coingeckoClient, alphavantageClient,
		historicalStart, cfg.RequestDelay, cfg.MaxTickersPerRequest, log)

	// Background jobs
	sched := scheduler.New(log)
	if err := registerJobs(sched, cfg, refreshService, trafficCounter, syncService); err != nil {
		return fmt.Errorf("failed to register jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Log:     log,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
		DB:      db,
		Modules: []server.RouteRegistrar{
			latesthandlers.NewHandler(derivedService, priceCache, refreshService, trafficCounter, trafficRepo, log),
			derivedhandlers.NewHandler(derivedService, log),
			cataloghandlers.NewHandler(assetRepo, quoteRepo, ohlcvRepo, derivedRepo, stateRepo, log),
			synchandlers.NewHandler(syncService, log),
		},
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	// Persist any counts accumulated since the last scheduled flush
	if err := trafficCounter.Flush(); err != nil {
		log.Error().Err(err).Msg("Final traffic flush failed")
	}

	log.Info().Msg("Shutdown complete")
	return nil
}

func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	refresh *latest.RefreshService,
	traffic *latest.TrafficCounter,
	syncService *syncsvc.Service,
) error {
	if err := sched.AddJob(every(cfg.CacheRefreshInterval), &scheduler.CacheRefreshJob{Service: refresh}); err != nil {
		return err
	}
	if cfg.AlphaVantageAPIKey != "" {
		if err := sched.AddJob(every(cfg.CurrencyRefreshInterval), &scheduler.CurrencyRefreshJob{Service: refresh}); err != nil {
			return err
		}
	}
	if err := sched.AddJob(every(cfg.TrafficFlushInterval), &scheduler.TrafficFlushJob{Counter: traffic}); err != nil {
		return err
	}
	deltaInterval := time.Duration(cfg.DeltaSyncIntervalDays) * 24 * time.Hour
	if err := sched.AddJob(every(deltaInterval), &scheduler.DeltaSyncJob{Service: syncService}); err != nil {
		return err
	}
	return nil
}

func every(d time.Duration) string {
	return "@every " + d.String()
}
