package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/gasline-erp/gasline-erp/internal/app"
	"github.com/gasline-erp/gasline-erp/internal/inventory"
	"github.com/gasline-erp/gasline-erp/internal/ledger"
	"github.com/gasline-erp/gasline-erp/internal/payables"
	"github.com/gasline-erp/gasline-erp/internal/platform/cache"
	"github.com/gasline-erp/gasline-erp/internal/platform/db"
	"github.com/gasline-erp/gasline-erp/internal/restock"
	"github.com/gasline-erp/gasline-erp/internal/shared"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, summaries uncached", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger)

	payablesRepo := payables.NewRepository(pool)
	payablesService := payables.NewService(payablesRepo, payables.Accounts{
		Inventory:  cfg.LedgerInventoryAccount,
		Payable:    cfg.LedgerPayableAccount,
		Deductions: cfg.LedgerDeductionAccount,
	}, auditLogger)

	var summaryCache restock.SummaryCachePort
	if redisClient != nil {
		summaryCache = restock.NewSummaryCache(redisClient, cfg.SummaryCacheTTL, logger)
	}
	restockRepo := restock.NewRepository(pool)
	restockService := restock.NewService(restockRepo, payablesService, idempotencyStore, auditLogger,
		summaryCache, decimal.NewFromFloat(cfg.TaxRate))

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		RestockHandler:   restock.NewHandler(logger, restockService),
		PayablesHandler:  payables.NewHandler(logger, payablesService),
		LedgerHandler:    ledger.NewHandler(logger, ledgerService),
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("server stopped cleanly")
}
