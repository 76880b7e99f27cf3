package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPENSE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ExpenseRepository implements expense.Repository for PostgreSQL.
type ExpenseRepository struct {
	conn *Connection
}

var _ expense.Repository = (*ExpenseRepository)(nil)

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository(conn *Connection) *ExpenseRepository {
	return &ExpenseRepository{conn: conn}
}

const (
	expenseColumns = `id, title, category, amount, vendor_name, description, expense_date, due_date,
		paid_by_type, paid_by, status, has_partner_debt, split_ratio, created_by, created_at, paid_at`

	shareColumns = `id, expense_id, partner_id, partner_name, percentage, amount, paid_amount,
		status, repayment_status, created_at, settled_at`
)

// ─────────────────────────────────────────────────────────────────────────────
// Expenses
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts the expense and its shares. Callers run it inside a unit of work.
func (r *ExpenseRepository) Create(ctx context.Context, e *expense.Expense) error {
	ratio, err := json.Marshal(e.SplitRatio)
	if err != nil {
		return fmt.Errorf("failed to marshal split ratio: %w", err)
	}

	q := r.conn.Querier(ctx)
	_, err = q.Exec(ctx, `
		INSERT INTO expenses (`+expenseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		e.ID,
		e.Title,
		e.Category,
		e.Amount,
		e.VendorName,
		e.Description,
		e.ExpenseDate,
		e.DueDate,
		string(e.PaidByType),
		e.PaidBy,
		string(e.Status),
		e.HasPartnerDebt,
		ratio,
		e.CreatedBy,
		e.CreatedAt,
		e.PaidAt,
	)
	if err != nil {
		return mapError("CreateExpense", fmt.Errorf("failed to insert expense: %w", err))
	}

	if len(e.Shares) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range e.Shares {
		batch.Queue(`
			INSERT INTO expense_shares (`+shareColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			s.ID,
			s.ExpenseID,
			s.PartnerID,
			s.PartnerName,
			s.Percentage,
			s.Amount,
			s.PaidAmount,
			string(s.Status),
			string(s.RepaymentStatus),
			s.CreatedAt,
			s.SettledAt,
		)
	}
	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return mapError("CreateExpense", fmt.Errorf("failed to insert shares: %w", err))
	}
	return nil
}

// GetByID returns the expense together with its shares.
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*expense.Expense, error) {
	q := r.conn.Querier(ctx)

	e, err := scanExpense(q.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	shares, err := r.queryShares(ctx, `SELECT `+shareColumns+` FROM expense_shares WHERE expense_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	e.Shares = shares
	return e, nil
}

// List returns expenses newest first, with their shares.
func (r *ExpenseRepository) List(ctx context.Context, f expense.ListFilter) ([]*expense.Expense, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Category != "" {
		where = append(where, "lower(category) = lower("+arg(f.Category)+")")
	}
	if f.From != nil {
		where = append(where, "expense_date >= "+arg(*f.From))
	}
	if f.To != nil {
		where = append(where, "expense_date <= "+arg(*f.To))
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY seq DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += ` OFFSET ` + arg(f.Offset)
	}

	rows, err := r.conn.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var (
		out []*expense.Expense
		ids []string
	)
	byID := make(map[string]*expense.Expense)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		ids = append(ids, e.ID)
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	shares, err := r.queryShares(ctx, `SELECT `+shareColumns+` FROM expense_shares WHERE expense_id = ANY($1) ORDER BY seq`, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range shares {
		if e, ok := byID[s.ExpenseID]; ok {
			e.Shares = append(e.Shares, s)
		}
	}
	return out, nil
}

// UpdateStatus stores the payment status of an expense.
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, e *expense.Expense) error {
	tag, err := r.conn.Querier(ctx).Exec(ctx,
		`UPDATE expenses SET status = $2, paid_at = $3 WHERE id = $1`,
		e.ID, string(e.Status), e.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrExpenseNotFound
	}
	return nil
}

// Delete removes the expense; shares go with it through ON DELETE CASCADE.
func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.conn.Querier(ctx).Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrExpenseNotFound
	}
	return nil
}

// TotalAmount sums every recorded expense.
func (r *ExpenseRepository) TotalAmount(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.conn.Querier(ctx).QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses`).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum expenses: %w", err)
	}
	return total, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Shares
// ─────────────────────────────────────────────────────────────────────────────

const openSharesQuery = `SELECT ` + shareColumns + ` FROM expense_shares
	WHERE partner_id = $1 AND status = 'UNPAID'
	ORDER BY created_at, seq`

// OpenSharesForUpdate returns the partner's open shares oldest first and locks them.
func (r *ExpenseRepository) OpenSharesForUpdate(ctx context.Context, partnerID string) ([]*expense.Share, error) {
	return r.queryShares(ctx, openSharesQuery+` FOR UPDATE`, partnerID)
}

// OpenShares returns the partner's open shares oldest first.
func (r *ExpenseRepository) OpenShares(ctx context.Context, partnerID string) ([]*expense.Share, error) {
	return r.queryShares(ctx, openSharesQuery, partnerID)
}

// UpdateShares stores repayment progress of the given shares.
func (r *ExpenseRepository) UpdateShares(ctx context.Context, shares []*expense.Share) error {
	if len(shares) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range shares {
		batch.Queue(`
			UPDATE expense_shares
			SET paid_amount = $2, status = $3, repayment_status = $4, settled_at = $5
			WHERE id = $1
		`, s.ID, s.PaidAmount, string(s.Status), string(s.RepaymentStatus), s.SettledAt)
	}

	results := r.conn.Querier(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for _, s := range shares {
		tag, err := results.Exec()
		if err != nil {
			return fmt.Errorf("failed to update share %s: %w", s.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return shared.NewDomainError("expense", "UpdateShares", shared.ErrNotFound, "share "+s.ID+" not found")
		}
	}
	return nil
}

func (r *ExpenseRepository) queryShares(ctx context.Context, query string, args ...interface{}) ([]*expense.Share, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shares: %w", err)
	}
	defer rows.Close()

	var out []*expense.Share
	for rows.Next() {
		var (
			s               expense.Share
			status, payment string
		)
		err := rows.Scan(
			&s.ID,
			&s.ExpenseID,
			&s.PartnerID,
			&s.PartnerName,
			&s.Percentage,
			&s.Amount,
			&s.PaidAmount,
			&status,
			&payment,
			&s.CreatedAt,
			&s.SettledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		s.Status = expense.ShareStatus(status)
		s.RepaymentStatus = expense.RepaymentStatus(payment)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func scanExpense(row pgx.Row) (*expense.Expense, error) {
	var (
		e                 expense.Expense
		paidByType, state string
		ratio             []byte
	)
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Category,
		&e.Amount,
		&e.VendorName,
		&e.Description,
		&e.ExpenseDate,
		&e.DueDate,
		&paidByType,
		&e.PaidBy,
		&state,
		&e.HasPartnerDebt,
		&ratio,
		&e.CreatedBy,
		&e.CreatedAt,
		&e.PaidAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrExpenseNotFound
		}
		return nil, fmt.Errorf("failed to scan expense: %w", err)
	}

	e.PaidByType = expense.PaidByType(paidByType)
	e.Status = expense.Status(state)
	e.SplitRatio = map[string]decimal.Decimal{}
	if len(ratio) > 0 {
		if err := json.Unmarshal(ratio, &e.SplitRatio); err != nil {
			return nil, fmt.Errorf("failed to unmarshal split ratio: %w", err)
		}
	}
	return &e, nil
}
