package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/clients/quotes"
	"github.com/aristath/folio-tracker/internal/config"
	"github.com/aristath/folio-tracker/internal/database"
	"github.com/aristath/folio-tracker/internal/modules/allocation"
	"github.com/aristath/folio-tracker/internal/modules/importing"
	"github.com/aristath/folio-tracker/internal/modules/portfolio"
	"github.com/aristath/folio-tracker/internal/modules/prices"
	"github.com/aristath/folio-tracker/internal/modules/universe"
	"github.com/aristath/folio-tracker/internal/scheduler"
	"github.com/aristath/folio-tracker/internal/server"
	"github.com/aristath/folio-tracker/pkg/logger"
)

// resolutionCacheTTL bounds how long a resolved identifier is reused
// across imports before it is re-verified against the provider.
const resolutionCacheTTL = 12 * time.Hour

func main() {
	// Load configuration first so the logger respects LOG_LEVEL
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Folio Tracker")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// External quote/fx provider
	quoteClient := quotes.New(cfg.QuoteServiceURL, cfg.FxServiceURL, log)
	defer quoteClient.Close()

	// Repositories
	conn := db.Conn()
	accounts := portfolio.NewAccountRepository(conn, log)
	portfolios := portfolio.NewPortfolioRepository(conn, log)
	holdings := portfolio.NewHoldingRepository(conn, log)
	lots := portfolio.NewShareLotRepository(conn, log)
	views := portfolio.NewService(conn, log)
	mappings := universe.NewMappingRepository(conn, log)
	priceRepo := prices.NewRepository(conn, log)
	runs := importing.NewRunRepository(conn, log)
	states := allocation.NewStateRepository(conn, log)

	// Price and rate plumbing
	rates := prices.NewRateCache(conn, quoteClient, log)
	updater := prices.NewUpdater(quoteClient, priceRepo, rates, cfg.BaseCurrency, cfg.PriceWorkers, log)

	// Import pipeline
	resolver := universe.NewResolver(mappings, quoteClient, universe.NewResolutionCache(resolutionCacheTTL), log)
	importSvc := importing.NewService(
		conn,
		importing.NewParser(log),
		resolver,
		importing.NewAggregator(log),
		importing.NewApplier(conn, log),
		updater,
		runs,
		log,
	)

	// Allocation rules and planner
	rules, err := allocation.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.RulesPath).Msg("Failed to load allocation rules")
	}
	allocationSvc := allocation.NewService(log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	// Register background jobs
	if err := registerJobs(sched, db, cfg, priceRepo, updater, rates, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		DB:      db,
		Config:  cfg,
		DevMode: cfg.DevMode,

		Accounts:   accounts,
		Portfolios: portfolios,
		Holdings:   holdings,
		Lots:       lots,
		Views:      views,
		Mappings:   mappings,
		Imports:    importSvc,
		Runs:       runs,
		Allocation: allocationSvc,
		States:     states,
		Rules:      rules,
		PriceRepo:  priceRepo,
		Updater:    updater,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(
	sched *scheduler.Scheduler,
	db *database.DB,
	cfg *config.Config,
	priceRepo *prices.Repository,
	updater *prices.Updater,
	rates *prices.RateCache,
	log zerolog.Logger,
) error {
	// Prices hourly, exchange rates every morning, maintenance at night
	// when nothing else runs.
	if err := sched.AddJob("0 0 * * * *", scheduler.NewPriceRefreshJob(priceRepo, updater, log)); err != nil {
		return err
	}
	if err := sched.AddJob("0 30 5 * * *", scheduler.NewRateRefreshJob(db.Conn(), rates, cfg.BaseCurrency, log)); err != nil {
		return err
	}
	if err := sched.AddJob("0 0 3 * * *", scheduler.NewMaintenanceJob(db, log)); err != nil {
		return err
	}
	return nil
}
