package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alem-hub/academy-finance/internal/domain/enrollment"
)

// EnrollmentReader implements enrollment.Reader over the roster tables.
type EnrollmentReader struct {
	conn *Connection
}

var _ enrollment.Reader = (*EnrollmentReader)(nil)

// NewEnrollmentReader creates a new EnrollmentReader.
func NewEnrollmentReader(conn *Connection) *EnrollmentReader {
	return &EnrollmentReader{conn: conn}
}

// ListStudents returns the fee columns of every student.
func (r *EnrollmentReader) ListStudents(ctx context.Context) ([]enrollment.Student, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx, `
		SELECT id, name, COALESCE(class_id, ''), paid_amount, total_fee
		FROM students
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	var out []enrollment.Student
	for rows.Next() {
		var s enrollment.Student
		if err := rows.Scan(&s.ID, &s.Name, &s.ClassID, &s.PaidAmount, &s.TotalFee); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListClasses returns every class with its subjects.
func (r *EnrollmentReader) ListClasses(ctx context.Context) ([]enrollment.Class, error) {
	rows, err := r.conn.Querier(ctx).Query(ctx, `SELECT id, name, subjects FROM classes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	var out []enrollment.Class
	for rows.Next() {
		var (
			c   enrollment.Class
			raw []byte
		)
		if err := rows.Scan(&c.ID, &c.Name, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		var subjects []struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &subjects); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subjects of %s: %w", c.ID, err)
		}
		for _, s := range subjects {
			c.Subjects = append(c.Subjects, enrollment.Subject{Name: s.Name})
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
