package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-commerce/meridian/internal/app"
	"github.com/meridian-commerce/meridian/internal/auth"
	"github.com/meridian-commerce/meridian/internal/observability"
	"github.com/meridian-commerce/meridian/internal/orders"
	"github.com/meridian-commerce/meridian/internal/platform/cache"
	"github.com/meridian-commerce/meridian/internal/platform/db"
	"github.com/meridian-commerce/meridian/internal/shared"
	"github.com/meridian-commerce/meridian/internal/warehouse"
	"github.com/meridian-commerce/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "meridian_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}

	metrics := observability.NewMetrics()

	warehouseRepo := warehouse.NewRepository(dbpool)
	warehouseService := warehouse.NewService(warehouseRepo, auditLogger, idempotencyStore, jobsClient, logger)
	warehouseHandler := warehouse.NewHandler(logger, warehouseService, authMiddleware)

	ordersRepo := orders.NewRepository(dbpool)
	ordersService := orders.NewService(ordersRepo, warehouseService, logger)
	ordersHandler := orders.NewHandler(logger, ordersService, authMiddleware, metrics)

	// Make sure a default warehouse exists before the first order comes in.
	bootCtx, cancelBoot := context.WithTimeout(ctx, 10*time.Second)
	if _, err := warehouseService.EnsureDefaultWarehouse(bootCtx); err != nil {
		logger.Error("ensure default warehouse", slog.Any("error", err))
		cancelBoot()
		os.Exit(1)
	}
	cancelBoot()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		AuthHandler:      authHandler,
		WarehouseHandler: warehouseHandler,
		OrdersHandler:    ordersHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
