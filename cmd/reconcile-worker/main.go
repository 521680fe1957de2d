package main

import (
	"context"
	"time"

	"bilancio/internal/cli"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentReconcile)

	logger.Info("Starting reconcile-worker")

	store := cli.OpenStore(context.Background(), logger, cfg)

	// Reconciliation only clears links, so it publishes no ledger events.
	ledger := services.NewLedgerService(store.Store, nil, nil)
	recurring := services.NewRecurringService(store.Store, store.Store, ledger, nil)
	processor := services.NewReconcileProcessor(store.Store, recurring)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := store.Cleanup(); err != nil {
			logger.Warn("Store close error", log.FieldError, err)
		}
	})

	interval := cfg.ReconcileInterval
	logger.Info("Payment link reconciliation configured",
		"interval", interval,
		"backend", cfg.DataBackend)

	run := func(ctx context.Context) {
		report, err := processor.ReconcileAll(ctx)
		if err != nil {
			logger.Error("Reconciliation failed", log.FieldError, err)
			return
		}
		logger.Info("Reconciliation complete",
			"checked", report.Checked,
			"cleared", report.Cleared,
			"failed", report.Failed,
			"next_check", time.Now().Add(interval).Format("15:04:05"))
	}

	logger.Info("Running initial reconciliation...")
	run(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run(ctx)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Reconcile-worker shutdown complete")
}
