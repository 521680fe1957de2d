package google

import (
	"fmt"
	"strconv"
	"strings"

	"bilancio/internal/core"
)

// Column layout of the ledger sheet. The transaction id in column A is the row key.
var header = []any{"ID", "Account", "Date", "Type", "Category", "Description", "Amount", "Recurrence", "Recurring ID"}

const lastColumn = "I"

func transactionRow(accountID string, tx core.Transaction) []any {
	return []any{
		tx.ID,
		accountID,
		tx.Date.String(),
		string(tx.Type),
		tx.CategoryID,
		tx.Description,
		tx.Amount.String(),
		string(tx.Recurrence),
		tx.RecurringExpenseID,
	}
}

// a1 builds an A1 range on sheet, quoting the sheet name.
func a1(sheet, rng string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), rng)
}

func rowRange(sheet string, row int) string {
	return a1(sheet, fmt.Sprintf("A%d:%s%d", row, lastColumn, row))
}

func cell(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

// findRow returns the 1-based row whose first cell is id, or 0.
func findRow(values [][]any, id string) int {
	if id == "" {
		return 0
	}
	for i, row := range values {
		if cell(row, 0) == id {
			return i + 1
		}
	}
	return 0
}

// accountIDs returns the ids of rows owned by accountID, skipping the header
// and cleared rows.
func accountIDs(values [][]any, accountID string) []string {
	var out []string
	for i, row := range values {
		id := cell(row, 0)
		if id == "" || (i == 0 && id == header[0]) {
			continue
		}
		if cell(row, 1) == accountID {
			out = append(out, id)
		}
	}
	return out
}

// parseUpdatedRow extracts the first row number from a range such as
// "'Ledger'!A12:I12".
func parseUpdatedRow(rng string) (int, error) {
	_, cells, ok := strings.Cut(rng, "!")
	if !ok {
		cells = rng
	}
	start, _, _ := strings.Cut(cells, ":")
	digits := strings.TrimLeft(start, "ABCDEFGHIJKLMNOPQRSTUVWXYZ$")
	digits = strings.TrimPrefix(digits, "$")
	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 {
		return 0, fmt.Errorf("parse updated range %q", rng)
	}
	return row, nil
}
