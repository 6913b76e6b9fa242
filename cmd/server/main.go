package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/surveypro/internal"
	"github.com/DukeRupert/surveypro/internal/catalog"
	"github.com/DukeRupert/surveypro/internal/events"
	"github.com/DukeRupert/surveypro/internal/handler"
	"github.com/DukeRupert/surveypro/internal/metrics"
	"github.com/DukeRupert/surveypro/internal/middleware"
	"github.com/DukeRupert/surveypro/internal/service"
	"github.com/DukeRupert/surveypro/internal/toast"
)

func run() error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize key-value store
	store, err := internal.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("store initialization failed: %w", err)
	}
	defer store.Close()

	// Initialize catalog
	source, err := internal.NewCatalogSource(cfg, logger)
	if err != nil {
		return fmt.Errorf("catalog source initialization failed: %w", err)
	}
	loader := catalog.NewLoader(source, cfg.CatalogPolicy(), logger)

	loc, err := cfg.QuotaLocation()
	if err != nil {
		return fmt.Errorf("quota timezone: %w", err)
	}

	// Initialize services
	profileService := service.NewProfileService(store, logger)
	completionService := service.NewCompletionService(store, loc, logger)
	quotaService := service.NewQuotaService(profileService, completionService, logger)
	surveyService := service.NewSurveyService(loader, profileService, completionService, logger)
	browseService := service.NewBrowseService(profileService, completionService, quotaService, surveyService, logger)

	// Event fan-out: store changes and withdrawal toasts
	hub := events.NewHub(logger)
	go func() {
		if err := hub.ForwardStoreChanges(ctx, store); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("store change forwarding stopped", "error", err)
		}
	}()

	var toasts *toast.Generator
	if cfg.ToastsEnabled {
		toasts, err = toast.NewGenerator(cfg.ToastConfig(), hub, logger)
		if err != nil {
			return fmt.Errorf("toast generator initialization failed: %w", err)
		}
		toasts.Start(ctx)
	}

	// Initialize middleware
	isSecure := !cfg.IsDevelopment()
	originMw := middleware.NewOriginMiddleware(logger, isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	csrfMw := middleware.NewCSRFMiddleware(logger, isSecure)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	rateLimiter := middleware.NewSurveyRateLimiter(logger)
	defer rateLimiter.Stop()

	if !metricsAuthMw.Enabled() {
		logger.Warn("metrics endpoint is unprotected; set METRICS_USERNAME and METRICS_PASSWORD")
	}

	// Initialize handlers
	loginHandler := handler.NewLoginHandler(originMw, profileService, logger)
	surveyHandler := handler.NewSurveyHandler(browseService, surveyService, profileService, quotaService, logger)
	packageHandler := handler.NewPackageHandler(browseService, profileService, logger)
	eventsHandler := handler.NewEventsHandler(hub, handler.DefaultHeartbeat, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Static files and the catalog document
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	mux.HandleFunc("GET "+catalog.DocumentPath(cfg.CatalogBasePath), func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/db.json")
	})

	// Health check and metrics
	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	requireOrigin := middleware.Stack(originMw.WithOrigin, originMw.RequireOrigin)

	loginHandler.RegisterRoutes(mux, middleware.Stack(rateLimiter.LimitLogin, originMw.WithOrigin))
	surveyHandler.RegisterRoutes(mux, requireOrigin, rateLimiter.LimitMutations)
	packageHandler.RegisterRoutes(mux, requireOrigin, rateLimiter.LimitMutations)
	eventsHandler.RegisterRoutes(mux, requireOrigin)

	app := middleware.Stack(
		metrics.Middleware,
		loggingMw.Handler,
		securityMw.Handler,
		csrfMw.Protect,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started",
			"address", server.Addr,
			"env", cfg.Env,
			"store", cfg.StoreBackend,
			"catalog", cfg.CatalogSource,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Stop the background producers and end open event streams, which
	// would otherwise hold Shutdown until the timeout.
	stop()
	if toasts != nil {
		toasts.Stop()
	}
	hub.Close()

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
