package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

// timestampLayout is fixed-width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

const (
	categoryColumns    = `id, name, icon, color, kind, budget_cents`
	transactionColumns = `id, type, amount_cents, category_id, description, date, recurrence, recurring_expense_id, created_at`
	recurringColumns   = `id, description, amount_cents, category_id, due_day, recurrence, linked_transaction_id, paid_for_month, paid_for_year, created_at`
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, accountID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE account_id = ? ORDER BY position, rowid`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertCategories(ctx context.Context, accountID string, cats []core.Category) ([]core.Category, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert categories: %w", err)
	}
	defer tx.Rollback()

	out := make([]core.Category, 0, len(cats))
	for i, c := range cats {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, account_id, name, icon, color, kind, budget_cents, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, accountID, c.Name, c.Icon, c.Color, string(c.Kind), budgetCents(c.Budget), i)
		if err != nil {
			return nil, fmt.Errorf("insert category %s: %w", c.Name, err)
		}
		out = append(out, c)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert categories: %w", err)
	}

	slog.InfoContext(ctx, "Categories seeded in SQLite", "account_id", accountID, "count", len(out))
	return out, nil
}

func (r *SQLiteRepository) UpdateCategoryBudget(ctx context.Context, accountID, categoryID string, budget *core.Money) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE categories SET budget_cents = ? WHERE account_id = ? AND id = ? RETURNING `+categoryColumns,
		budgetCents(budget), accountID, categoryID)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category budget: %w", notFound(err))
	}
	return c, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = ? ORDER BY date DESC, created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, accountID, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = ? AND id = ?`, accountID, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", notFound(err))
	}
	return t, nil
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, accountID string, t core.Transaction) (core.Transaction, error) {
	t.ID = uuid.NewString()
	t.CreatedAt = r.now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, account_id, type, amount_cents, category_id, description, date, recurrence, recurring_expense_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, accountID, string(t.Type), t.Amount.Cents, t.CategoryID, t.Description, t.Date.String(),
		string(t.Recurrence), nullString(t.RecurringExpenseID), t.CreatedAt.Format(timestampLayout))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, accountID, id string, u TransactionUpdate) (core.Transaction, error) {
	var amount *int64
	if u.Amount != nil {
		amount = &u.Amount.Cents
	}
	var date *string
	if u.Date != nil {
		s := u.Date.String()
		date = &s
	}
	row := r.db.QueryRowContext(ctx,
		`UPDATE transactions SET
			type = COALESCE(?, type),
			amount_cents = COALESCE(?, amount_cents),
			category_id = COALESCE(?, category_id),
			description = COALESCE(?, description),
			date = COALESCE(?, date),
			recurrence = COALESCE(?, recurrence)
		 WHERE account_id = ? AND id = ?
		 RETURNING `+transactionColumns,
		(*string)(u.Type), amount, u.CategoryID, u.Description, date, (*string)(u.Recurrence), accountID, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", notFound(err))
	}
	return t, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, accountID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = ? AND id = ?`, accountID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return affectedOne(res, "delete transaction")
}

func (r *SQLiteRepository) ListRecurringExpenses(ctx context.Context, accountID string) ([]core.RecurringExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses WHERE account_id = ? ORDER BY due_day, rowid`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringExpense
	for rows.Next() {
		re, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		out = append(out, re)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetRecurringExpense(ctx context.Context, accountID, id string) (core.RecurringExpense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses WHERE account_id = ? AND id = ?`, accountID, id)
	re, err := scanRecurring(row)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("get recurring expense: %w", notFound(err))
	}
	return re, nil
}

func (r *SQLiteRepository) InsertRecurringExpense(ctx context.Context, accountID string, re core.RecurringExpense) (core.RecurringExpense, error) {
	re.ID = uuid.NewString()
	re.CreatedAt = r.now().UTC()
	link := LinkOf(re)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_expenses (id, account_id, description, amount_cents, category_id, due_day, recurrence,
			linked_transaction_id, paid_for_month, paid_for_year, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		re.ID, accountID, re.Description, re.Amount.Cents, re.CategoryID, re.DueDay, string(re.Recurrence),
		nullString(link.TransactionID), nullInt(link.Month), nullInt(link.Year), re.CreatedAt.Format(timestampLayout))
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("insert recurring expense: %w", err)
	}

	slog.InfoContext(ctx, "Recurring expense saved to SQLite",
		"id", re.ID,
		"description", re.Description,
		"amount_cents", re.Amount.Cents,
		"due_day", re.DueDay)
	return re, nil
}

func (r *SQLiteRepository) UpdateRecurringExpense(ctx context.Context, accountID, id string, u RecurringExpenseUpdate) (core.RecurringExpense, error) {
	var amount *int64
	if u.Amount != nil {
		amount = &u.Amount.Cents
	}
	row := r.db.QueryRowContext(ctx,
		`UPDATE recurring_expenses SET
			description = COALESCE(?, description),
			amount_cents = COALESCE(?, amount_cents),
			category_id = COALESCE(?, category_id),
			due_day = COALESCE(?, due_day),
			recurrence = COALESCE(?, recurrence)
		 WHERE account_id = ? AND id = ?
		 RETURNING `+recurringColumns,
		u.Description, amount, u.CategoryID, u.DueDay, (*string)(u.Recurrence), accountID, id)
	re, err := scanRecurring(row)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("update recurring expense: %w", notFound(err))
	}
	return re, nil
}

func (r *SQLiteRepository) SetPaymentLink(ctx context.Context, accountID, id string, link PaymentLink) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_expenses SET linked_transaction_id = ?, paid_for_month = ?, paid_for_year = ?
		 WHERE account_id = ? AND id = ?`,
		nullString(link.TransactionID), nullInt(link.Month), nullInt(link.Year), accountID, id)
	if err != nil {
		return fmt.Errorf("set payment link: %w", err)
	}
	return affectedOne(res, "set payment link")
}

func (r *SQLiteRepository) DeleteRecurringExpense(ctx context.Context, accountID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_expenses WHERE account_id = ? AND id = ?`, accountID, id)
	if err != nil {
		return fmt.Errorf("delete recurring expense: %w", err)
	}
	return affectedOne(res, "delete recurring expense")
}

func (r *SQLiteRepository) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id FROM categories
		 UNION SELECT account_id FROM transactions
		 UNION SELECT account_id FROM recurring_expenses
		 ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c      core.Category
		kind   string
		budget sql.NullInt64
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &kind, &budget); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.CategoryKind(kind)
	if budget.Valid {
		c.Budget = &core.Money{Cents: budget.Int64}
	}
	return c, nil
}

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t                     core.Transaction
		typ, date, recurrence string
		recurringID           sql.NullString
		createdAt             string
	)
	if err := s.Scan(&t.ID, &typ, &t.Amount.Cents, &t.CategoryID, &t.Description, &date, &recurrence, &recurringID, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Date = d
	t.Type = core.TransactionType(typ)
	t.Recurrence = core.Recurrence(recurrence)
	t.RecurringExpenseID = recurringID.String
	t.CreatedAt, err = time.Parse(timestampLayout, createdAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse created_at: %w", err)
	}
	return t, nil
}

func scanRecurring(s rowScanner) (core.RecurringExpense, error) {
	var (
		re          core.RecurringExpense
		recurrence  string
		linkedID    sql.NullString
		month, year sql.NullInt64
		createdAt   string
	)
	if err := s.Scan(&re.ID, &re.Description, &re.Amount.Cents, &re.CategoryID, &re.DueDay, &recurrence,
		&linkedID, &month, &year, &createdAt); err != nil {
		return core.RecurringExpense{}, err
	}
	re.Recurrence = core.Recurrence(recurrence)
	re.LinkedTransactionID = linkedID.String
	re.PaidForMonth = int(month.Int64)
	re.PaidForYear = int(year.Int64)
	var err error
	re.CreatedAt, err = time.Parse(timestampLayout, createdAt)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("parse created_at: %w", err)
	}
	return re, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affectedOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func budgetCents(b *core.Money) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: b.Cents, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}

var _ Store = (*SQLiteRepository)(nil)
