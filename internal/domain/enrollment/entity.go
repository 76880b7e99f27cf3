// Package enrollment exposes the read-only student and class views the finance
// engine consumes. The records themselves are owned by the roster service.
package enrollment

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Student is the finance-relevant slice of a student record.
type Student struct {
	ID         string
	Name       string
	ClassID    string
	PaidAmount decimal.Decimal
	TotalFee   decimal.Decimal
}

// Subject is one subject taught in a class.
type Subject struct {
	Name string
}

// Class is the finance-relevant slice of a class record.
type Class struct {
	ID       string
	Name     string
	Subjects []Subject
}

// Teaches reports whether any subject equals subject, ignoring case and
// surrounding whitespace.
func (c Class) Teaches(subject string) bool {
	want := strings.TrimSpace(subject)
	if want == "" {
		return false
	}
	for _, s := range c.Subjects {
		if strings.EqualFold(strings.TrimSpace(s.Name), want) {
			return true
		}
	}
	return false
}

// Totals sums collected and expected fees.
func Totals(students []Student) (paid, expected decimal.Decimal) {
	paid, expected = decimal.Zero, decimal.Zero
	for _, s := range students {
		paid = paid.Add(s.PaidAmount)
		expected = expected.Add(s.TotalFee)
	}
	return paid, expected
}

// Reader loads roster data.
type Reader interface {
	ListStudents(ctx context.Context) ([]Student, error)
	ListClasses(ctx context.Context) ([]Class, error)
}
