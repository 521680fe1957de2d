package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"bilancio/internal/core"
)

// EventType names the kind of ledger write an event describes.
type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	TransactionUpdated EventType = "transaction.updated"
	TransactionDeleted EventType = "transaction.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case TransactionCreated, TransactionUpdated, TransactionDeleted:
		return true
	}
	return false
}

// LedgerEvent describes one successful transaction write. Deleted events
// carry at least the transaction id.
type LedgerEvent struct {
	Type        EventType        `json:"type"`
	AccountID   string           `json:"accountId"`
	Transaction core.Transaction `json:"transaction"`
	Timestamp   time.Time        `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(typ EventType, accountID string, tx core.Transaction) *LedgerEvent {
	return &LedgerEvent{
		Type:        typ,
		AccountID:   accountID,
		Transaction: tx,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if !ev.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.AccountID == "" || ev.Transaction.ID == "" {
		return nil, fmt.Errorf("event %s is missing account or transaction id", ev.Type)
	}
	return &ev, nil
}
