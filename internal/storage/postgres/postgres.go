// Package postgres implements the ledger store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

const (
	categoryColumns    = `id, name, icon, color, kind, budget_cents`
	transactionColumns = `id, type, amount_cents, category_id, description, date, recurrence, recurring_expense_id, created_at`
	recurringColumns   = `id, description, amount_cents, category_id, due_day, recurrence, linked_transaction_id, paid_for_month, paid_for_year, created_at`
)

type Repository struct {
	pool *pgxpool.Pool
}

// Connect opens a pool, checks it and applies migrations.
func Connect(ctx context.Context, databaseURL string) (*Repository, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// Ping checks the pool for readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) ListCategories(ctx context.Context, accountID string) ([]core.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE account_id = $1 ORDER BY position, seq`, accountID)
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

func (r *Repository) InsertCategories(ctx context.Context, accountID string, cats []core.Category) ([]core.Category, error) {
	out := make([]core.Category, 0, len(cats))
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i, c := range cats {
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			batch.Queue(
				`INSERT INTO categories (id, account_id, name, icon, color, kind, budget_cents, position)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				c.ID, accountID, c.Name, c.Icon, c.Color, string(c.Kind), budgetCents(c.Budget), i)
			out = append(out, c)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return nil, fmt.Errorf("insert categories: %w", err)
	}

	slog.InfoContext(ctx, "Categories seeded in Postgres", "account_id", accountID, "count", len(out))
	return out, nil
}

func (r *Repository) UpdateCategoryBudget(ctx context.Context, accountID, categoryID string, budget *core.Money) (core.Category, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE categories SET budget_cents = $1 WHERE account_id = $2 AND id = $3 RETURNING `+categoryColumns,
		budgetCents(budget), accountID, categoryID)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category budget: %w", notFound(err))
	}
	return c, nil
}

func (r *Repository) ListTransactions(ctx context.Context, accountID string) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 ORDER BY date DESC, created_at DESC`, accountID)
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

func (r *Repository) GetTransaction(ctx context.Context, accountID, id string) (core.Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = $1 AND id = $2`, accountID, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", notFound(err))
	}
	return t, nil
}

func (r *Repository) InsertTransaction(ctx context.Context, accountID string, t core.Transaction) (core.Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO transactions (id, account_id, type, amount_cents, category_id, description, date, recurrence, recurring_expense_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+transactionColumns,
		uuid.NewString(), accountID, string(t.Type), t.Amount.Cents, t.CategoryID, t.Description, t.Date.Time,
		string(t.Recurrence), optString(t.RecurringExpenseID))
	saved, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return saved, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, accountID, id string, u storage.TransactionUpdate) (core.Transaction, error) {
	var (
		typ, recurrence *string
		amount          *int64
		date            *time.Time
	)
	if u.Type != nil {
		typ = (*string)(u.Type)
	}
	if u.Recurrence != nil {
		recurrence = (*string)(u.Recurrence)
	}
	if u.Amount != nil {
		amount = &u.Amount.Cents
	}
	if u.Date != nil {
		date = &u.Date.Time
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE transactions SET
			type = COALESCE($1, type),
			amount_cents = COALESCE($2, amount_cents),
			category_id = COALESCE($3, category_id),
			description = COALESCE($4, description),
			date = COALESCE($5::date, date),
			recurrence = COALESCE($6, recurrence)
		 WHERE account_id = $7 AND id = $8
		 RETURNING `+transactionColumns,
		typ, amount, u.CategoryID, u.Description, date, recurrence, accountID, id)
	t, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", notFound(err))
	}
	return t, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, accountID, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE account_id = $1 AND id = $2`, accountID, id)
	return affectedOne(cmd, err, "delete transaction")
}

func (r *Repository) ListRecurringExpenses(ctx context.Context, accountID string) ([]core.RecurringExpense, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses WHERE account_id = $1 ORDER BY due_day, seq`, accountID)
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

func (r *Repository) GetRecurringExpense(ctx context.Context, accountID, id string) (core.RecurringExpense, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses WHERE account_id = $1 AND id = $2`, accountID, id)
	re, err := scanRecurring(row)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("get recurring expense: %w", notFound(err))
	}
	return re, nil
}

func (r *Repository) InsertRecurringExpense(ctx context.Context, accountID string, re core.RecurringExpense) (core.RecurringExpense, error) {
	link := storage.LinkOf(re)
	row := r.pool.QueryRow(ctx,
		`INSERT INTO recurring_expenses (id, account_id, description, amount_cents, category_id, due_day, recurrence,
			linked_transaction_id, paid_for_month, paid_for_year)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+recurringColumns,
		uuid.NewString(), accountID, re.Description, re.Amount.Cents, re.CategoryID, re.DueDay, string(re.Recurrence),
		optString(link.TransactionID), optInt(link.Month), optInt(link.Year))
	saved, err := scanRecurring(row)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("insert recurring expense: %w", err)
	}
	return saved, nil
}

func (r *Repository) UpdateRecurringExpense(ctx context.Context, accountID, id string, u storage.RecurringExpenseUpdate) (core.RecurringExpense, error) {
	var (
		amount     *int64
		recurrence *string
	)
	if u.Amount != nil {
		amount = &u.Amount.Cents
	}
	if u.Recurrence != nil {
		recurrence = (*string)(u.Recurrence)
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE recurring_expenses SET
			description = COALESCE($1, description),
			amount_cents = COALESCE($2, amount_cents),
			category_id = COALESCE($3, category_id),
			due_day = COALESCE($4, due_day),
			recurrence = COALESCE($5, recurrence)
		 WHERE account_id = $6 AND id = $7
		 RETURNING `+recurringColumns,
		u.Description, amount, u.CategoryID, u.DueDay, recurrence, accountID, id)
	re, err := scanRecurring(row)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("update recurring expense: %w", notFound(err))
	}
	return re, nil
}

func (r *Repository) SetPaymentLink(ctx context.Context, accountID, id string, link storage.PaymentLink) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE recurring_expenses SET linked_transaction_id = $1, paid_for_month = $2, paid_for_year = $3
		 WHERE account_id = $4 AND id = $5`,
		optString(link.TransactionID), optInt(link.Month), optInt(link.Year), accountID, id)
	return affectedOne(cmd, err, "set payment link")
}

func (r *Repository) DeleteRecurringExpense(ctx context.Context, accountID, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM recurring_expenses WHERE account_id = $1 AND id = $2`, accountID, id)
	return affectedOne(cmd, err, "delete recurring expense")
}

func (r *Repository) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT account_id FROM categories
		 UNION SELECT account_id FROM transactions
		 UNION SELECT account_id FROM recurring_expenses
		 ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect account ids: %w", err)
	}
	return ids, nil
}

func scanCategory(row pgx.Row) (core.Category, error) {
	var (
		c      core.Category
		kind   string
		budget *int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &kind, &budget); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.CategoryKind(kind)
	if budget != nil {
		c.Budget = &core.Money{Cents: *budget}
	}
	return c, nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		t               core.Transaction
		typ, recurrence string
		date            time.Time
		recurringID     *string
	)
	if err := row.Scan(&t.ID, &typ, &t.Amount.Cents, &t.CategoryID, &t.Description, &date, &recurrence, &recurringID, &t.CreatedAt); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Recurrence = core.Recurrence(recurrence)
	t.Date = core.DateOf(date)
	if recurringID != nil {
		t.RecurringExpenseID = *recurringID
	}
	return t, nil
}

func scanRecurring(row pgx.Row) (core.RecurringExpense, error) {
	var (
		re          core.RecurringExpense
		recurrence  string
		linkedID    *string
		month, year *int
	)
	if err := row.Scan(&re.ID, &re.Description, &re.Amount.Cents, &re.CategoryID, &re.DueDay, &recurrence,
		&linkedID, &month, &year, &re.CreatedAt); err != nil {
		return core.RecurringExpense{}, err
	}
	re.Recurrence = core.Recurrence(recurrence)
	if linkedID != nil {
		re.LinkedTransactionID = *linkedID
	}
	if month != nil {
		re.PaidForMonth = *month
	}
	if year != nil {
		re.PaidForYear = *year
	}
	return re, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}

func affectedOne(cmd pgconn.CommandTag, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

func budgetCents(b *core.Money) *int64 {
	if b == nil {
		return nil
	}
	return &b.Cents
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

var _ storage.Store = (*Repository)(nil)
