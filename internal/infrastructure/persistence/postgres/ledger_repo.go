package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements ledger.Repository for PostgreSQL.
type LedgerRepository struct {
	conn *Connection
}

var _ ledger.Repository = (*LedgerRepository)(nil)

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

const transactionColumns = `id, type, category, amount, date, collected_by, status, reference,
	description, created_at, verified_at, verified_by`

// Append inserts a journal entry.
func (r *LedgerRepository) Append(ctx context.Context, t *ledger.Transaction) error {
	_, err := r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		t.ID,
		string(t.Type),
		t.Category,
		t.Amount,
		t.Date,
		t.CollectedBy,
		string(t.Status),
		t.Reference,
		t.Description,
		t.CreatedAt,
		t.VerifiedAt,
		t.VerifiedBy,
	)
	if err != nil {
		return mapError("AppendTransaction", fmt.Errorf("failed to insert transaction: %w", err))
	}
	return nil
}

// FloatingUntilForUpdate locks every floating entry dated at or before boundary.
func (r *LedgerRepository) FloatingUntilForUpdate(ctx context.Context, boundary time.Time) ([]*ledger.Transaction, error) {
	return r.query(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE status = 'FLOATING' AND date <= $1
		ORDER BY date, seq
		FOR UPDATE
	`, boundary)
}

// MarkVerified persists the VERIFIED transition. Rows verified by a concurrent
// close are left untouched and not counted.
func (r *LedgerRepository) MarkVerified(ctx context.Context, txs []*ledger.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, t := range txs {
		batch.Queue(`
			UPDATE transactions
			SET status = $2, verified_at = $3, verified_by = $4
			WHERE id = $1 AND status = 'FLOATING'
		`, t.ID, string(t.Status), t.VerifiedAt, t.VerifiedBy)
	}

	results := r.conn.Querier(ctx).SendBatch(ctx, batch)
	defer results.Close()

	count := 0
	for range txs {
		tag, err := results.Exec()
		if err != nil {
			return count, mapError("MarkVerified", fmt.Errorf("failed to verify transaction: %w", err))
		}
		count += int(tag.RowsAffected())
	}
	return count, nil
}

// List returns filtered entries, newest first.
func (r *LedgerRepository) List(ctx context.Context, f ledger.Filter) ([]*ledger.Transaction, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Status != nil {
		where = append(where, "status = "+arg(string(*f.Status)))
	}
	if f.Type != nil {
		where = append(where, "type = "+arg(string(*f.Type)))
	}
	if f.From != nil {
		where = append(where, "date >= "+arg(*f.From))
	}
	if f.To != nil {
		where = append(where, "date <= "+arg(*f.To))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date DESC, seq DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += ` OFFSET ` + arg(f.Offset)
	}
	return r.query(ctx, query, args...)
}

// SaveClosing records a day close.
func (r *LedgerRepository) SaveClosing(ctx context.Context, c *ledger.DayClosing) error {
	_, err := r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO day_closings (id, day, boundary, closed_by, closed_at, transitioned, income, expense)
		VALUES ($1, $2::text::date, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Day, c.Boundary, c.ClosedBy, c.ClosedAt, c.Transitioned, c.Income, c.Expense)
	if err != nil {
		return mapError("SaveClosing", fmt.Errorf("failed to insert day closing: %w", err))
	}
	return nil
}

// LastClosing returns the most recent close of day.
func (r *LedgerRepository) LastClosing(ctx context.Context, day string) (*ledger.DayClosing, error) {
	var c ledger.DayClosing
	err := r.conn.Querier(ctx).QueryRow(ctx, `
		SELECT id, to_char(day, 'YYYY-MM-DD'), boundary, closed_by, closed_at, transitioned, income, expense
		FROM day_closings
		WHERE day = $1::text::date
		ORDER BY seq DESC
		LIMIT 1
	`, day).Scan(&c.ID, &c.Day, &c.Boundary, &c.ClosedBy, &c.ClosedAt, &c.Transitioned, &c.Income, &c.Expense)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("ledger", "LastClosing", shared.ErrNotFound, "day "+day+" was never closed")
		}
		return nil, fmt.Errorf("failed to get day closing: %w", err)
	}
	return &c, nil
}

func (r *LedgerRepository) query(ctx context.Context, query string, args ...interface{}) ([]*ledger.Transaction, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []*ledger.Transaction
	for rows.Next() {
		var (
			t           ledger.Transaction
			typ, status string
		)
		err := rows.Scan(
			&t.ID,
			&typ,
			&t.Category,
			&t.Amount,
			&t.Date,
			&t.CollectedBy,
			&status,
			&t.Reference,
			&t.Description,
			&t.CreatedAt,
			&t.VerifiedAt,
			&t.VerifiedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Type = ledger.Type(typ)
		t.Status = ledger.Status(status)
		out = append(out, &t)
	}
	return out, rows.Err()
}
