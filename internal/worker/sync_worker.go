package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/sheets"
	"bilancio/internal/storage"
)

// SyncWorker mirrors ledger events into a LedgerMirror.
type SyncWorker struct {
	// txs is the source of truth. When nil the worker trusts event snapshots
	// and backfills are unavailable.
	txs    storage.TransactionStore
	mirror sheets.LedgerMirror
}

// SyncReport counts what a backfill did.
type SyncReport struct {
	Upserted int
	Removed  int
	Errors   int
}

func NewSyncWorker(txs storage.TransactionStore, mirror sheets.LedgerMirror) *SyncWorker {
	return &SyncWorker{txs: txs, mirror: mirror}
}

// HandleLedgerEvent applies one ledger event to the mirror. Returning an
// error requeues the message.
func (w *SyncWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"type", ev.Type,
		"account_id", ev.AccountID,
		"transaction_id", ev.Transaction.ID)

	switch ev.Type {
	case amqp.TransactionCreated, amqp.TransactionUpdated:
		return w.syncTransaction(ctx, ev.AccountID, ev.Transaction)
	case amqp.TransactionDeleted:
		if err := w.mirror.DeleteTransaction(ctx, ev.AccountID, ev.Transaction.ID); err != nil {
			return fmt.Errorf("delete mirrored transaction: %w", err)
		}
		slog.InfoContext(ctx, "Removed mirrored transaction",
			"account_id", ev.AccountID, "transaction_id", ev.Transaction.ID)
		return nil
	default:
		return fmt.Errorf("unknown event type: %s", ev.Type)
	}
}

// syncTransaction mirrors the current state of a transaction. The store is
// read again so that a late event never overwrites newer data.
func (w *SyncWorker) syncTransaction(ctx context.Context, accountID string, snapshot core.Transaction) error {
	tx := snapshot
	if w.txs != nil {
		current, err := w.txs.GetTransaction(ctx, accountID, snapshot.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			slog.InfoContext(ctx, "Transaction deleted before sync, removing from mirror",
				"account_id", accountID, "transaction_id", snapshot.ID)
			if err := w.mirror.DeleteTransaction(ctx, accountID, snapshot.ID); err != nil {
				return fmt.Errorf("delete mirrored transaction: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("get transaction from storage: %w", err)
		}
		tx = current
	}

	if err := w.mirror.UpsertTransaction(ctx, accountID, tx); err != nil {
		return fmt.Errorf("upsert mirrored transaction: %w", err)
	}
	slog.InfoContext(ctx, "Successfully synced transaction",
		"account_id", accountID,
		"transaction_id", tx.ID,
		"amount_cents", tx.Amount.Cents)
	return nil
}

// ResyncAccount rewrites the mirror of one account from the store: every
// stored transaction is upserted and mirrored ids missing from the store are
// removed. It recovers from lost messages or worker downtime.
func (w *SyncWorker) ResyncAccount(ctx context.Context, accountID string) (SyncReport, error) {
	var report SyncReport
	if w.txs == nil {
		return report, errors.New("resync requires a transaction store")
	}

	txs, err := w.txs.ListTransactions(ctx, accountID)
	if err != nil {
		return report, fmt.Errorf("list transactions: %w", err)
	}
	mirrored, err := w.mirror.ListTransactionIDs(ctx, accountID)
	if err != nil {
		return report, fmt.Errorf("list mirrored transactions: %w", err)
	}

	live := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		live[tx.ID] = struct{}{}
		if err := w.mirror.UpsertTransaction(ctx, accountID, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction during resync",
				"account_id", accountID, "transaction_id", tx.ID, "error", err)
			report.Errors++
			continue
		}
		report.Upserted++
	}

	for _, id := range mirrored {
		if _, ok := live[id]; ok {
			continue
		}
		if err := w.mirror.DeleteTransaction(ctx, accountID, id); err != nil {
			slog.ErrorContext(ctx, "Failed to remove stale mirrored transaction",
				"account_id", accountID, "transaction_id", id, "error", err)
			report.Errors++
			continue
		}
		report.Removed++
	}
	return report, nil
}

// StartupSyncCheck resyncs every account at worker startup.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context, accounts storage.AccountLister) error {
	ids, err := accounts.ListAccountIDs(ctx)
	if err != nil {
		return fmt.Errorf("list accounts for startup sync: %w", err)
	}
	if len(ids) == 0 {
		slog.InfoContext(ctx, "No accounts found on startup")
		return nil
	}

	var total SyncReport
	failed := 0
	for _, id := range ids {
		report, err := w.ResyncAccount(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to resync account", "account_id", id, "error", err)
			failed++
			continue
		}
		total.Upserted += report.Upserted
		total.Removed += report.Removed
		total.Errors += report.Errors
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"accounts", len(ids),
		"failed_accounts", failed,
		"upserted", total.Upserted,
		"removed", total.Removed,
		"errors", total.Errors)
	return nil
}
