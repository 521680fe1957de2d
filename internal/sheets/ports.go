package sheets

import (
	"context"

	"bilancio/internal/core"
)

// LedgerMirror keeps an external copy of an account's transactions.
// Implementations must be idempotent: upserting the same transaction twice
// leaves one copy, and deleting an unknown id is not an error.
type LedgerMirror interface {
	UpsertTransaction(ctx context.Context, accountID string, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, accountID, id string) error
	// ListTransactionIDs returns the ids mirrored for accountID.
	ListTransactionIDs(ctx context.Context, accountID string) ([]string, error)
}
