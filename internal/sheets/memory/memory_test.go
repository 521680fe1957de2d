package memory

import (
	"context"
	"testing"

	"bilancio/internal/core"
)

func TestMirrorUpsertIsIdempotent(t *testing.T) {
	m := New()
	ctx := context.Background()
	tx := core.Transaction{ID: "t1", Description: "Lunch", Amount: core.Money{Cents: 123}}

	if err := m.UpsertTransaction(ctx, "alice", tx); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	tx.Description = "Dinner"
	if err := m.UpsertTransaction(ctx, "alice", tx); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	ids, err := m.ListTransactionIDs(ctx, "alice")
	if err != nil || len(ids) != 1 {
		t.Fatalf("unexpected ids: %v err=%v", ids, err)
	}
	got, ok := m.Get("alice", "t1")
	if !ok || got.Description != "Dinner" {
		t.Fatalf("unexpected copy: %+v ok=%v", got, ok)
	}
}

func TestMirrorDeleteAndIsolation(t *testing.T) {
	m := New()
	ctx := context.Background()
	_ = m.UpsertTransaction(ctx, "alice", core.Transaction{ID: "t1"})
	_ = m.UpsertTransaction(ctx, "bob", core.Transaction{ID: "t2"})

	if err := m.DeleteTransaction(ctx, "alice", "missing"); err != nil {
		t.Fatalf("deleting unknown id: %v", err)
	}
	if err := m.DeleteTransaction(ctx, "bob", "t1"); err != nil {
		t.Fatalf("delete across accounts: %v", err)
	}
	if _, ok := m.Get("alice", "t1"); !ok {
		t.Fatal("delete for bob removed alice's transaction")
	}

	if err := m.DeleteTransaction(ctx, "alice", "t1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ids, _ := m.ListTransactionIDs(ctx, "alice")
	if len(ids) != 0 {
		t.Fatalf("expected no ids, got %v", ids)
	}
	ids, _ = m.ListTransactionIDs(ctx, "bob")
	if len(ids) != 1 || ids[0] != "t2" {
		t.Fatalf("unexpected bob ids: %v", ids)
	}
}
