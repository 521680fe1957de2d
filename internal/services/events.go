package services

import (
	"context"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
)

// EventPublisher sends ledger events to the mirror.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// eventSink publishes after successful writes. Failures are logged, never returned.
type eventSink struct {
	pub EventPublisher
}

func (s eventSink) publish(ctx context.Context, typ amqp.EventType, accountID string, tx core.Transaction) {
	if s.pub == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping ledger event",
			"type", typ, "transaction_id", tx.ID)
		return
	}
	if err := s.pub.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(typ, accountID, tx)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", typ,
			"account_id", accountID,
			"transaction_id", tx.ID,
			"error", err)
	}
}
