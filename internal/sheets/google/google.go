package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	ports "bilancio/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is used when no sheet name is configured.
const DefaultSheetName = "Ledger"

// Client mirrors transactions into one sheet, one row per transaction.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	// rows maps transaction ids to row numbers. Rows are cleared, never
	// removed, so a cached number stays valid unless the sheet is edited by
	// hand; lookups verify the id before trusting it.
	rows cache.Cache[int]
}

var _ ports.LedgerMirror = (*Client)(nil)

// New creates a Sheets client authenticated with service account credentials
// from the environment. rows may be nil to disable caching of row lookups.
func New(ctx context.Context, spreadsheetID, sheetName string, rows cache.Cache[int]) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheetName, rows: rows}, nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) ready() error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	return nil
}

// EnsureHeader writes the column header when the first row is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	rng := a1(c.sheet, "A1:"+lastColumn+"1")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && cell(resp.Values[0], 0) != "" {
		return nil
	}
	vr := &gsheet.ValueRange{Values: [][]any{header}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header to %s: %w", c.sheet, err)
	}
	slog.InfoContext(ctx, "Wrote ledger sheet header", "sheet", c.sheet)
	return nil
}

// locate returns the row holding id, or 0 when it is not mirrored.
func (c *Client) locate(ctx context.Context, id string) (int, error) {
	if c.rows != nil {
		if row, ok := c.rows.Get(id); ok {
			rng := a1(c.sheet, fmt.Sprintf("A%d", row))
			resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
			if err == nil && findRow(resp.Values, id) == 1 {
				return row, nil
			}
			c.rows.Delete(id)
		}
	}

	rng := a1(c.sheet, "A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	row := findRow(resp.Values, id)
	if row > 0 && c.rows != nil {
		c.rows.Set(id, row)
	}
	return row, nil
}

// UpsertTransaction writes tx to its row, appending a row for new ids.
func (c *Client) UpsertTransaction(ctx context.Context, accountID string, tx core.Transaction) error {
	if err := c.ready(); err != nil {
		return err
	}
	if tx.ID == "" {
		return errors.New("transaction without id")
	}

	row, err := c.locate(ctx, tx.ID)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{transactionRow(accountID, tx)}}

	if row > 0 {
		rng := rowRange(c.sheet, row)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		slog.DebugContext(ctx, "Updated mirrored transaction", "id", tx.ID, "row", row)
		return nil
	}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1(c.sheet, "A:"+lastColumn), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}
	if resp.Updates != nil && c.rows != nil {
		if row, err := parseUpdatedRow(resp.Updates.UpdatedRange); err == nil {
			c.rows.Set(tx.ID, row)
		}
	}
	slog.DebugContext(ctx, "Appended mirrored transaction", "id", tx.ID)
	return nil
}

// DeleteTransaction clears the row holding id. Unknown ids are ignored.
func (c *Client) DeleteTransaction(ctx context.Context, _ string, id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	row, err := c.locate(ctx, id)
	if err != nil {
		return err
	}
	if row == 0 {
		slog.DebugContext(ctx, "Transaction not mirrored, nothing to clear", "id", id)
		return nil
	}

	rng := rowRange(c.sheet, row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	if c.rows != nil {
		c.rows.Delete(id)
	}
	return nil
}

// ListTransactionIDs returns the ids mirrored for accountID.
func (c *Client) ListTransactionIDs(ctx context.Context, accountID string) ([]string, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	rng := a1(c.sheet, "A:B")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return accountIDs(resp.Values, accountID), nil
}
