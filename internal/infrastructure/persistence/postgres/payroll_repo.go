package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alem-hub/academy-finance/internal/domain/payroll"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEACHER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// TeacherRepository implements payroll.TeacherRepository for PostgreSQL.
type TeacherRepository struct {
	conn *Connection
}

var _ payroll.TeacherRepository = (*TeacherRepository)(nil)

// NewTeacherRepository creates a new TeacherRepository.
func NewTeacherRepository(conn *Connection) *TeacherRepository {
	return &TeacherRepository{conn: conn}
}

const teacherColumns = `id, name, subject, status, compensation`

// GetByID returns a teacher by ID.
func (r *TeacherRepository) GetByID(ctx context.Context, id string) (*payroll.Teacher, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx, `SELECT `+teacherColumns+` FROM teachers WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query teacher: %w", err)
	}
	teachers, err := scanTeachers(rows)
	if err != nil {
		return nil, err
	}
	if len(teachers) == 0 {
		return nil, shared.ErrTeacherNotFound
	}
	return teachers[0], nil
}

// ListActive returns active teachers ordered by name.
func (r *TeacherRepository) ListActive(ctx context.Context) ([]*payroll.Teacher, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx,
		`SELECT `+teacherColumns+` FROM teachers WHERE status = $1 ORDER BY name, id`, string(payroll.TeacherActive))
	if err != nil {
		return nil, fmt.Errorf("failed to query teachers: %w", err)
	}
	return scanTeachers(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close()
}

func scanTeachers(rows rowScanner) ([]*payroll.Teacher, error) {
	defer rows.Close()

	var out []*payroll.Teacher
	for rows.Next() {
		var (
			t      payroll.Teacher
			status string
			raw    []byte
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Subject, &status, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan teacher: %w", err)
		}
		t.Status = payroll.TeacherStatus(status)
		if err := json.Unmarshal(raw, &t.Compensation); err != nil {
			return nil, fmt.Errorf("failed to unmarshal compensation of %s: %w", t.ID, err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PaymentRepository implements payroll.PaymentRepository for PostgreSQL.
type PaymentRepository struct {
	conn *Connection
}

var _ payroll.PaymentRepository = (*PaymentRepository)(nil)

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(conn *Connection) *PaymentRepository {
	return &PaymentRepository{conn: conn}
}

const paymentColumns = `id, teacher_id, month, year, amount_paid, status, paid_at, recorded_by, updated_at`

// GetForPeriodForUpdate locks the teacher's row for the month.
func (r *PaymentRepository) GetForPeriodForUpdate(ctx context.Context, teacherID string, period shared.Period) (*payroll.TeacherPayment, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx, `
		SELECT `+paymentColumns+` FROM teacher_payments
		WHERE teacher_id = $1 AND year = $2 AND month = $3
		FOR UPDATE
	`, teacherID, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}
	payments, err := scanPayments(rows)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, shared.NewDomainError("payroll", "GetPayment", shared.ErrNotFound, "no payment for period")
	}
	return payments[0], nil
}

// ListPaid returns the month's paid records.
func (r *PaymentRepository) ListPaid(ctx context.Context, period shared.Period) ([]*payroll.TeacherPayment, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx, `
		SELECT `+paymentColumns+` FROM teacher_payments
		WHERE year = $1 AND month = $2 AND status = $3
		ORDER BY teacher_id
	`, period.Year, period.Month, string(payroll.PaymentPaid))
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	return scanPayments(rows)
}

// Save upserts the record for (teacher, year, month).
func (r *PaymentRepository) Save(ctx context.Context, p *payroll.TeacherPayment) error {
	_, err := r.conn.Querier(ctx).Exec(ctx, `
		INSERT INTO teacher_payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (teacher_id, year, month) DO UPDATE SET
			amount_paid = EXCLUDED.amount_paid,
			status = EXCLUDED.status,
			paid_at = EXCLUDED.paid_at,
			recorded_by = EXCLUDED.recorded_by,
			updated_at = EXCLUDED.updated_at
	`,
		p.ID,
		p.TeacherID,
		p.Month,
		p.Year,
		p.AmountPaid,
		string(p.Status),
		p.PaidAt,
		p.RecordedBy,
		p.UpdatedAt,
	)
	if err != nil {
		return mapError("SavePayment", fmt.Errorf("failed to save payment: %w", err))
	}
	return nil
}

func scanPayments(rows rowScanner) ([]*payroll.TeacherPayment, error) {
	defer rows.Close()

	var out []*payroll.TeacherPayment
	for rows.Next() {
		var (
			p      payroll.TeacherPayment
			status string
		)
		err := rows.Scan(&p.ID, &p.TeacherID, &p.Month, &p.Year, &p.AmountPaid, &status, &p.PaidAt, &p.RecordedBy, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Status = payroll.PaymentStatus(status)
		out = append(out, &p)
	}
	return out, rows.Err()
}
