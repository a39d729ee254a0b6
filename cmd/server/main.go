package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/facturo/facturo/internal"
	"github.com/facturo/facturo/internal/ai"
	"github.com/facturo/facturo/internal/ai/anthropic"
	"github.com/facturo/facturo/internal/ai/mock"
	"github.com/facturo/facturo/internal/billing"
	"github.com/facturo/facturo/internal/email"
	"github.com/facturo/facturo/internal/handler"
	"github.com/facturo/facturo/internal/jobs"
	"github.com/facturo/facturo/internal/metrics"
	"github.com/facturo/facturo/internal/middleware"
	"github.com/facturo/facturo/internal/report"
	"github.com/facturo/facturo/internal/repository"
	"github.com/facturo/facturo/internal/service"
	"github.com/facturo/facturo/internal/storage"
	"github.com/facturo/facturo/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx := context.Background()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// ==========================================================================
	// Database
	// ==========================================================================

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	queries := repository.New(db)

	// ==========================================================================
	// Infrastructure: storage, email, AI, billing
	// ==========================================================================

	store, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	mailer, err := email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger)
	if err != nil {
		return fmt.Errorf("email initialization failed: %w", err)
	}

	aiProvider, err := newAIProvider(cfg, queries, logger)
	if err != nil {
		return fmt.Errorf("ai provider initialization failed: %w", err)
	}

	billingService := billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
		StarterMonthlyPriceID:      cfg.StripeStarterMonthlyPriceID,
		StarterYearlyPriceID:       cfg.StripeStarterYearlyPriceID,
		ProfessionalMonthlyPriceID: cfg.StripeProfessionalMonthlyPriceID,
		ProfessionalYearlyPriceID:  cfg.StripeProfessionalYearlyPriceID,
		PremiumMonthlyPriceID:      cfg.StripePremiumMonthlyPriceID,
		PremiumYearlyPriceID:       cfg.StripePremiumYearlyPriceID,
	})

	// ==========================================================================
	// Services
	// ==========================================================================

	enqueuer := worker.NewEnqueuer(queries)

	subscriptionService := service.NewSubscriptionService(queries, logger)
	usageService := service.NewUsageService(queries, logger)
	gateService := service.NewGateService(subscriptionService, usageService, logger)
	userService := service.NewUserService(db, queries, subscriptionService, logger)
	contactService := service.NewContactService(queries, logger)
	invoiceService := service.NewInvoiceService(queries, gateService, enqueuer, enqueuer, logger)
	billService := service.NewBillService(queries, gateService, enqueuer, logger)
	productService := service.NewProductService(queries, gateService, logger)
	employeeService := service.NewEmployeeService(queries, gateService, logger)
	ledgerService := service.NewLedgerService(queries, gateService, report.NewXLSXExporter(), logger)
	assistantService := service.NewAssistantService(
		queries, gateService, aiProvider, store, service.NewImagingProcessor(), enqueuer, logger)

	pdfGenerator := report.NewPDFGenerator()

	// ==========================================================================
	// Background worker
	// ==========================================================================

	var jobWorker *worker.Worker
	if cfg.WorkerEnabled {
		workerCfg := worker.DefaultConfig()
		workerCfg.Concurrency = cfg.WorkerConcurrency
		workerCfg.PollInterval = cfg.WorkerPollInterval
		workerCfg.JobTimeout = cfg.WorkerJobTimeout
		jobWorker, err = worker.New(db, queries, workerCfg, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		jobWorker.Register(jobs.NewScanDocumentHandler(queries, aiProvider, store, logger))
		jobWorker.Register(jobs.NewReconcileUsageHandler(usageService, logger))
		jobWorker.Register(jobs.NewSendInvoiceEmailHandler(queries, gateService, pdfGenerator, store, mailer, logger))
		jobWorker.Register(jobs.NewPruneUsageHandler(usageService, logger))
		jobWorker.Start(ctx)
		logger.Info("Worker started", "concurrency", cfg.WorkerConcurrency)

		// Usage retention: one prune pass at boot, then daily. The worker
		// deduplicates nothing here, but the delete is idempotent so an
		// overlapping pass after a restart is harmless.
		go func() {
			if _, err := worker.EnqueuePruneUsage(ctx, queries, jobs.DefaultUsageRetentionMonths); err != nil {
				logger.Error("Could not enqueue usage retention job", "error", err)
			}
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := worker.EnqueuePruneUsage(ctx, queries, jobs.DefaultUsageRetentionMonths); err != nil {
						logger.Error("Could not enqueue usage retention job", "error", err)
					}
				}
			}
		}()
	}

	// ==========================================================================
	// HTTP routes
	// ==========================================================================

	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(userService, logger, isSecure)
	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)
	requireOwner := middleware.Stack(authMw.WithUser, authMw.RequireUser, authMw.RequireOwner)
	authLimiter := middleware.NewAuthRateLimiter(logger)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Locally stored files are served straight from disk. R2 serves its own.
	if cfg.StorageProvider == "local" {
		fileServer := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", fileServer))
	}

	authHandler := handler.NewAuthHandler(userService, isSecure, logger)
	limitLogin := middleware.Stack(authLimiter.LimitLogin, authLimiter.TrackLogin)
	authHandler.RegisterRoutes(mux, requireUser, limitLogin, authLimiter.LimitRegister, authLimiter.LimitPasswordReset)

	handler.NewPlanHandler(gateService, logger).RegisterRoutes(mux, requireUser)
	handler.NewContactHandler(contactService, logger).RegisterRoutes(mux, requireUser)
	handler.NewInvoiceHandler(invoiceService, gateService, queries, pdfGenerator, store, logger).RegisterRoutes(mux, requireUser)
	handler.NewBillHandler(billService, logger).RegisterRoutes(mux, requireUser)
	handler.NewProductHandler(productService, logger).RegisterRoutes(mux, requireUser)
	handler.NewEmployeeHandler(employeeService, logger).RegisterRoutes(mux, requireUser)
	handler.NewLedgerHandler(ledgerService, logger).RegisterRoutes(mux, requireUser)
	handler.NewAssistantHandler(assistantService, logger).RegisterRoutes(mux, requireUser)
	handler.NewBillingHandler(billingService, subscriptionService, queries, cfg.BaseURL, logger).RegisterRoutes(mux, requireOwner)
	handler.NewWebhookHandler(billingService, subscriptionService, queries, mailer, cfg.BaseURL+"/billing", logger).RegisterRoutes(mux)

	// ==========================================================================
	// Server lifecycle
	// ==========================================================================

	requestLogging := middleware.NewRequestLoggingMiddleware(logger)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(isSecure)

	root := middleware.Stack(
		securityHeaders.Handler,
		requestLogging.Handler,
		metrics.Middleware,
	)(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	if jobWorker != nil {
		jobWorker.Stop()
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.StorageProvider == "r2" {
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	}
	return storage.NewLocalStorage(storage.LocalConfig{
		BasePath: cfg.LocalStoragePath,
		BaseURL:  cfg.LocalStorageURL,
	}, logger)
}

func newAIProvider(cfg *internal.Config, queries *repository.Queries, logger *slog.Logger) (ai.Provider, error) {
	if cfg.AIProvider == "anthropic" {
		return anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, queries, logger)
	}
	return mock.New(logger), nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
