package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/config"
	"github.com/aristath/folio-tracker/internal/database"
	"github.com/aristath/folio-tracker/internal/modules/allocation"
	"github.com/aristath/folio-tracker/internal/modules/importing"
	"github.com/aristath/folio-tracker/internal/modules/portfolio"
	"github.com/aristath/folio-tracker/internal/modules/prices"
	"github.com/aristath/folio-tracker/internal/modules/universe"
)

// Config holds server configuration and the wired services
type Config struct {
	Port    int
	Log     zerolog.Logger
	DB      *database.DB
	Config  *config.Config
	DevMode bool

	Accounts    *portfolio.AccountRepository
	Portfolios  *portfolio.PortfolioRepository
	Holdings    *portfolio.HoldingRepository
	Lots        *portfolio.ShareLotRepository
	Views       *portfolio.Service
	Mappings    *universe.MappingRepository
	Imports     *importing.Service
	Runs        *importing.RunRepository
	Allocation  *allocation.Service
	States      *allocation.StateRepository
	Rules       allocation.Rules
	PriceRepo   *prices.Repository
	Updater     *prices.Updater
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	db     *database.DB
	cfg    *config.Config

	accounts   *portfolio.AccountRepository
	portfolios *portfolio.PortfolioRepository
	holdings   *portfolio.HoldingRepository
	lots       *portfolio.ShareLotRepository
	views      *portfolio.Service
	mappings   *universe.MappingRepository
	imports    *importing.Service
	runs       *importing.RunRepository
	allocation *allocation.Service
	states     *allocation.StateRepository
	rules      allocation.Rules
	priceRepo  *prices.Repository
	updater    *prices.Updater
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		db:         cfg.DB,
		cfg:        cfg.Config,
		accounts:   cfg.Accounts,
		portfolios: cfg.Portfolios,
		holdings:   cfg.Holdings,
		lots:       cfg.Lots,
		views:      cfg.Views,
		mappings:   cfg.Mappings,
		imports:    cfg.Imports,
		runs:       cfg.Runs,
		allocation: cfg.Allocation,
		states:     cfg.States,
		rules:      cfg.Rules,
		priceRepo:  cfg.PriceRepo,
		updater:    cfg.Updater,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", s.handleCreateAccount)

			r.Route("/{accountID}", func(r chi.Router) {
				r.Get("/", s.handleGetAccount)
				r.Delete("/", s.handleDeleteAccount)

				r.Get("/holdings", s.handleListHoldings)

				r.Get("/portfolios", s.handleListPortfolios)
				r.Post("/portfolios", s.handleCreatePortfolio)

				r.Post("/import", s.handleStartImport)

				r.Post("/mappings", s.handleUpsertMapping)
				r.Delete("/mappings/{csvIdentifier}", s.handleDeleteMapping)

				r.Route("/allocation", func(r chi.Router) {
					r.Get("/plan", s.handleAllocationPlan)
					r.Get("/capacity", s.handleAllocationCapacity)
					r.Get("/state", s.handleGetBuilderState)
					r.Put("/state", s.handleSaveBuilderState)
				})
			})
		})

		r.Get("/imports/{runID}", s.handleImportStatus)

		r.Route("/holdings/{holdingID}", func(r chi.Router) {
			r.Put("/identifier", s.handleOverrideIdentifier)
			r.Put("/category", s.handleSetCategory)
			r.Put("/portfolio", s.handleMoveHolding)
			r.Put("/shares", s.handleOverrideShares)
			r.Delete("/shares", s.handleClearShareOverride)
		})

		r.Post("/prices/refresh", s.handleRefreshPrices)

		r.Get("/system/status", s.handleSystemStatus)
	})
}

// ServeHTTP dispatches to the router, so the server can be exercised
// directly as an http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
