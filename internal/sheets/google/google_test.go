package google

import (
	"context"
	"strings"
	"testing"

	"bilancio/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", "Ledger", nil)
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewSheetsService_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := newSheetsService(context.Background())
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	expectedMsg := "missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)"
	if err.Error() != expectedMsg {
		t.Errorf("expected %q, got %q", expectedMsg, err.Error())
	}
}

func TestNewSheetsService_UnreadableFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/credentials.json")

	_, err := newSheetsService(context.Background())
	if err == nil {
		t.Fatal("expected error for unreadable credentials file")
	}
	if !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheet: DefaultSheetName} // svc is nil
	ctx := context.Background()

	if err := c.UpsertTransaction(ctx, "acct", core.Transaction{ID: "t1"}); err == nil {
		t.Error("UpsertTransaction: expected error with nil service")
	}
	if err := c.DeleteTransaction(ctx, "acct", "t1"); err == nil {
		t.Error("DeleteTransaction: expected error with nil service")
	}
	if _, err := c.ListTransactionIDs(ctx, "acct"); err == nil {
		t.Error("ListTransactionIDs: expected error with nil service")
	}
}

func TestTransactionRow(t *testing.T) {
	tx := core.Transaction{
		ID:                 "t1",
		Type:               core.Expense,
		Amount:             core.Money{Cents: 1599},
		CategoryID:         "bills",
		Description:        "Netflix",
		Date:               core.NewDate(2026, 3, 15),
		Recurrence:         core.Monthly,
		RecurringExpenseID: "r1",
	}

	got := transactionRow("acct", tx)
	want := []string{"t1", "acct", "2026-03-15", "expense", "bills", "Netflix", "15.99", "monthly", "r1"}
	if len(got) != len(header) {
		t.Fatalf("row has %d columns, header has %d", len(got), len(header))
	}
	for i, w := range want {
		if cell(got, i) != w {
			t.Errorf("column %d = %q, want %q", i, cell(got, i), w)
		}
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{
		{"ID"},
		{"t1"},
		{},
		{" t2 "},
	}

	tests := []struct {
		id   string
		want int
	}{
		{"t1", 2},
		{"t2", 4},
		{"missing", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := findRow(values, tt.id); got != tt.want {
			t.Errorf("findRow(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestAccountIDs(t *testing.T) {
	values := [][]any{
		header[:2],
		{"t1", "alice"},
		{"t2", "bob"},
		{},
		{"t3", "alice"},
	}

	got := accountIDs(values, "alice")
	if len(got) != 2 || got[0] != "t1" || got[1] != "t3" {
		t.Errorf("accountIDs() = %v, want [t1 t3]", got)
	}
}

func TestA1(t *testing.T) {
	tests := []struct {
		sheet, rng, want string
	}{
		{"Ledger", "A:A", "'Ledger'!A:A"},
		{"2026 Ledger", "A1:I1", "'2026 Ledger'!A1:I1"},
		{"Bob's", "A2:I2", "'Bob''s'!A2:I2"},
	}
	for _, tt := range tests {
		if got := a1(tt.sheet, tt.rng); got != tt.want {
			t.Errorf("a1(%q, %q) = %q, want %q", tt.sheet, tt.rng, got, tt.want)
		}
	}
	if got := rowRange("Ledger", 7); got != "'Ledger'!A7:I7" {
		t.Errorf("rowRange() = %q", got)
	}
}

func TestParseUpdatedRow(t *testing.T) {
	tests := []struct {
		rng     string
		want    int
		wantErr bool
	}{
		{"'Ledger'!A12:I12", 12, false},
		{"Ledger!A3:I3", 3, false},
		{"A5", 5, false},
		{"'Ledger'!A:I", 0, true},
	}
	for _, tt := range tests {
		got, err := parseUpdatedRow(tt.rng)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseUpdatedRow(%q) error = %v, wantErr %v", tt.rng, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseUpdatedRow(%q) = %d, want %d", tt.rng, got, tt.want)
		}
	}
}
