package main

import (
	"context"
	"errors"
	"os"
	"time"

	"bilancio/internal/backend"
	"bilancio/internal/cache"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/log"
	"bilancio/internal/sheets"
	gsheet "bilancio/internal/sheets/google"
	memmirror "bilancio/internal/sheets/memory"
	"bilancio/internal/storage"
	"bilancio/internal/worker"
)

const (
	rowCacheSize = 100_000
	rowCacheTTL  = 6 * time.Hour
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the sync worker")
		os.Exit(1)
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), time.Minute)
	mirror, closeMirror, err := openMirror(bootCtx, logger, cfg)
	bootCancel()
	if err != nil {
		logger.Error("Failed to initialize ledger mirror", log.FieldError, err)
		os.Exit(1)
	}

	// A memory store lives in the API process, so the worker cannot read it
	// and mirrors event snapshots as they arrive.
	var (
		txs      storage.TransactionStore
		accounts storage.AccountLister
		store    *backend.BackendResult
	)
	if cfg.DataBackend != config.BackendMemory {
		store = cli.OpenStore(context.Background(), logger, cfg)
		txs, accounts = store.Store, store.Store
	} else {
		logger.Info("Memory backend configured, mirroring event snapshots without backfill")
	}

	amqpClient, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(txs, mirror)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
		closeMirror()
		if store != nil {
			if err := store.Cleanup(); err != nil {
				logger.Warn("Store close error", log.FieldError, err)
			}
		}
	})

	if accounts != nil {
		logger.Info("Performing startup sync check...")
		if err := syncWorker.StartupSyncCheck(ctx, accounts); err != nil {
			logger.Error("Failed startup sync check", log.FieldError, err)
		}
	}

	go func() {
		err := amqpClient.ConsumeLedgerEvents(ctx, syncWorker.HandleLedgerEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()

	if accounts != nil {
		go func() {
			ticker := time.NewTicker(cfg.SyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := syncWorker.StartupSyncCheck(ctx, accounts); err != nil {
						logger.Error("Periodic resync failed", log.FieldError, err)
					}
				}
			}
		}()
	}

	logger.Info("Bilancio worker started",
		"queue", cfg.AMQPQueue,
		"mirror", mirrorKind(cfg),
		"resync_interval", cfg.SyncInterval)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

func mirrorKind(cfg *config.Config) string {
	if cfg.MirrorEnabled() {
		return "sheets"
	}
	return "memory"
}

// openMirror returns the Google Sheets mirror when a spreadsheet is
// configured and an in-process mirror otherwise.
func openMirror(ctx context.Context, logger *log.Logger, cfg *config.Config) (sheets.LedgerMirror, func(), error) {
	if !cfg.MirrorEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, using in-memory mirror")
		return memmirror.New(), func() {}, nil
	}

	rows, err := cache.New[int](cache.Options{MaxItems: rowCacheSize, TTL: rowCacheTTL})
	if err != nil {
		return nil, nil, err
	}
	client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, rows)
	if err != nil {
		rows.Close()
		return nil, nil, err
	}
	if err := client.EnsureHeader(ctx); err != nil {
		rows.Close()
		return nil, nil, err
	}
	logger.WithComponent(log.ComponentSheets).Info("Google Sheets mirror initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return client, rows.Close, nil
}
