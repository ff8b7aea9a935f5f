package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/gasline-erp/gasline-erp/internal/app"
	"github.com/gasline-erp/gasline-erp/internal/ledger"
	"github.com/gasline-erp/gasline-erp/internal/payables"
	"github.com/gasline-erp/gasline-erp/internal/platform/db"
	"github.com/gasline-erp/gasline-erp/internal/restock"
	"github.com/gasline-erp/gasline-erp/internal/shared"
	"github.com/gasline-erp/gasline-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	ledgerRepo := ledger.NewRepository(pool)

	payablesRepo := payables.NewRepository(pool)
	payablesService := payables.NewService(payablesRepo, payables.Accounts{
		Inventory:  cfg.LedgerInventoryAccount,
		Payable:    cfg.LedgerPayableAccount,
		Deductions: cfg.LedgerDeductionAccount,
	}, auditLogger)

	restockRepo := restock.NewRepository(pool)
	restockService := restock.NewService(restockRepo, payablesService, idempotencyStore, auditLogger,
		nil, decimal.NewFromFloat(cfg.TaxRate))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSettlementRepair, Handler: func(ctx context.Context, t *asynq.Task) error {
				return jobs.RunSettlementRepair(ctx, logger, restockService, cfg.SettlementRepairAge, cfg.SettlementRepairBatch)
			}},
			{Type: jobs.TaskLedgerIntegrity, Handler: func(ctx context.Context, t *asynq.Task) error {
				return jobs.RunLedgerIntegrityCheck(ctx, logger, ledgerRepo)
			}},
			{Type: jobs.TaskIdempotencyCleanup, Handler: func(ctx context.Context, t *asynq.Task) error {
				return jobs.RunIdempotencyCleanup(ctx, logger, idempotencyStore, cfg.IdempotencyRetention)
			}},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: jobs.NewSettlementRepairTask()},
			{Spec: "0 2 * * *", Task: jobs.NewLedgerIntegrityTask()},
			{Spec: "30 3 * * *", Task: jobs.NewIdempotencyCleanupTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped cleanly")
}
