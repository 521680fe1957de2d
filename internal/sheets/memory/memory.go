package memory

import (
	"context"
	"sort"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/sheets"
)

// Mirror is an in-process LedgerMirror, used when no spreadsheet is
// configured and in tests.
type Mirror struct {
	mu       sync.Mutex
	accounts map[string]map[string]core.Transaction
}

var _ sheets.LedgerMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{accounts: make(map[string]map[string]core.Transaction)}
}

// UpsertTransaction stores tx under accountID, replacing any previous copy.
func (m *Mirror) UpsertTransaction(_ context.Context, accountID string, tx core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.accounts[accountID]
	if !ok {
		rows = make(map[string]core.Transaction)
		m.accounts[accountID] = rows
	}
	rows[tx.ID] = tx
	return nil
}

func (m *Mirror) DeleteTransaction(_ context.Context, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts[accountID], id)
	return nil
}

// ListTransactionIDs returns the mirrored ids of accountID, sorted.
func (m *Mirror) ListTransactionIDs(_ context.Context, accountID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.accounts[accountID]))
	for id := range m.accounts[accountID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Get returns the mirrored copy of id.
func (m *Mirror) Get(accountID, id string) (core.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.accounts[accountID][id]
	return tx, ok
}
