package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/storage"
)

// Reconciler is the per-account reconciliation step.
type Reconciler interface {
	Reconcile(ctx context.Context, accountID string) (ReconcileReport, error)
}

// ReconcileProcessor runs reconciliation over every account with data.
type ReconcileProcessor struct {
	accounts  storage.AccountLister
	reconcile Reconciler
}

// NewReconcileProcessor creates a new reconcile processor
func NewReconcileProcessor(accounts storage.AccountLister, reconcile Reconciler) *ReconcileProcessor {
	return &ReconcileProcessor{
		accounts:  accounts,
		reconcile: reconcile,
	}
}

// ReconcileAll reconciles every account, continuing past per-account errors.
// The returned report sums all accounts that could be processed.
func (p *ReconcileProcessor) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	var total ReconcileReport
	if p.accounts == nil || p.reconcile == nil {
		return total, fmt.Errorf("processor not properly initialized")
	}

	accounts, err := p.accounts.ListAccountIDs(ctx)
	if err != nil {
		return total, fmt.Errorf("list accounts: %w", err)
	}

	slog.InfoContext(ctx, "Reconciling payment links", "accounts", len(accounts))

	failedAccounts := 0
	for _, accountID := range accounts {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		report, err := p.reconcile.Reconcile(ctx, accountID)
		if err != nil {
			failedAccounts++
			slog.ErrorContext(ctx, "Failed to reconcile account",
				"account_id", accountID,
				"error", err)
			continue
		}
		total.Checked += report.Checked
		total.Cleared += report.Cleared
		total.Failed += report.Failed
	}

	slog.InfoContext(ctx, "Reconciliation complete",
		"accounts", len(accounts),
		"failed_accounts", failedAccounts,
		"checked", total.Checked,
		"cleared", total.Cleared,
		"failed", total.Failed)
	return total, nil
}
