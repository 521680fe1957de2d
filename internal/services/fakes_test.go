package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/storage"
	"bilancio/internal/storage/memory"
)

const testAccount = "acct-1"

var testNow = time.Date(2026, time.March, 20, 10, 0, 0, 0, time.UTC)

// faultyStore wraps the memory store, counting writes and failing the
// configured calls.
type faultyStore struct {
	*memory.Store

	mu          sync.Mutex
	writes      int
	insertTxErr error
	deleteTxErr error
	setLinkErr  error
	insertREErr error
	// afterListCategories runs once, after the next ListCategories read.
	afterListCategories func()
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memory.New()}
}

func (f *faultyStore) countWrite() {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
}

func (f *faultyStore) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *faultyStore) ListCategories(ctx context.Context, accountID string) ([]core.Category, error) {
	cats, err := f.Store.ListCategories(ctx, accountID)
	f.mu.Lock()
	hook := f.afterListCategories
	f.afterListCategories = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return cats, err
}

func (f *faultyStore) InsertTransaction(ctx context.Context, accountID string, tx core.Transaction) (core.Transaction, error) {
	f.countWrite()
	if f.insertTxErr != nil {
		return core.Transaction{}, f.insertTxErr
	}
	return f.Store.InsertTransaction(ctx, accountID, tx)
}

func (f *faultyStore) UpdateTransaction(ctx context.Context, accountID, id string, u storage.TransactionUpdate) (core.Transaction, error) {
	f.countWrite()
	return f.Store.UpdateTransaction(ctx, accountID, id, u)
}

func (f *faultyStore) DeleteTransaction(ctx context.Context, accountID, id string) error {
	f.countWrite()
	if f.deleteTxErr != nil {
		return f.deleteTxErr
	}
	return f.Store.DeleteTransaction(ctx, accountID, id)
}

func (f *faultyStore) InsertRecurringExpense(ctx context.Context, accountID string, re core.RecurringExpense) (core.RecurringExpense, error) {
	f.countWrite()
	if f.insertREErr != nil {
		return core.RecurringExpense{}, f.insertREErr
	}
	return f.Store.InsertRecurringExpense(ctx, accountID, re)
}

func (f *faultyStore) UpdateRecurringExpense(ctx context.Context, accountID, id string, u storage.RecurringExpenseUpdate) (core.RecurringExpense, error) {
	f.countWrite()
	return f.Store.UpdateRecurringExpense(ctx, accountID, id, u)
}

func (f *faultyStore) SetPaymentLink(ctx context.Context, accountID, id string, link storage.PaymentLink) error {
	f.countWrite()
	if f.setLinkErr != nil {
		return f.setLinkErr
	}
	return f.Store.SetPaymentLink(ctx, accountID, id, link)
}

func (f *faultyStore) DeleteRecurringExpense(ctx context.Context, accountID, id string) error {
	f.countWrite()
	return f.Store.DeleteRecurringExpense(ctx, accountID, id)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// mapCache is an in-process Cache whose next Get calls can be forced to miss.
type mapCache struct {
	mu       sync.Mutex
	items    map[string][]core.Category
	missNext int
}

func newMapCache() *mapCache {
	return &mapCache{items: make(map[string][]core.Category)}
}

func (c *mapCache) Get(key string) ([]core.Category, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.missNext > 0 {
		c.missNext--
		return nil, false
	}
	v, ok := c.items[key]
	return v, ok
}

func (c *mapCache) Set(key string, data []core.Category) {
	c.mu.Lock()
	c.items[key] = data
	c.mu.Unlock()
}

func (c *mapCache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *mapCache) Close() {}

type fixture struct {
	store     *faultyStore
	ledger    *LedgerService
	recurring *RecurringService
	pub       *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFaultyStore()
	pub := &recordingPublisher{}
	ledger := NewLedgerService(store, nil, pub)
	ledger.now = func() time.Time { return testNow }
	recurring := NewRecurringService(store, store, ledger, pub)
	recurring.now = func() time.Time { return testNow }
	return &fixture{store: store, ledger: ledger, recurring: recurring, pub: pub}
}

// category returns the id of a seeded category by name.
func (f *fixture) category(t *testing.T, name string) string {
	t.Helper()
	cats, err := f.ledger.Categories(context.Background(), testAccount)
	require.NoError(t, err)
	c, ok := core.FindCategoryByName(cats, name)
	require.True(t, ok, "category %s", name)
	return c.ID
}

func (f *fixture) addRecurring(t *testing.T, desc string, cents int64, dueDay int, r core.Recurrence) core.RecurringExpense {
	t.Helper()
	re, err := f.recurring.Add(context.Background(), testAccount, core.RecurringExpense{
		Description: desc,
		Amount:      core.Money{Cents: cents},
		CategoryID:  f.category(t, "Bills"),
		DueDay:      dueDay,
		Recurrence:  r,
	})
	require.NoError(t, err)
	return re
}

func (f *fixture) view(t *testing.T, id string, p core.Period) RecurringView {
	t.Helper()
	views, err := f.recurring.List(context.Background(), testAccount, p)
	require.NoError(t, err)
	for _, v := range views {
		if v.ID == id {
			return v
		}
	}
	t.Fatalf("recurring expense %s not listed", id)
	return RecurringView{}
}
