// Package payroll содержит модель преподавателя, его схемы оплаты и ежемесячных выплат.
package payroll

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// CompensationType - схема оплаты преподавателя.
type CompensationType string

const (
	// CompensationPercentage - процент от собранной выручки.
	CompensationPercentage CompensationType = "percentage"
	// CompensationFixed - фиксированная ставка, не зависит от выручки.
	CompensationFixed CompensationType = "fixed"
	// CompensationHybrid - база плюс процент от выручки.
	CompensationHybrid CompensationType = "hybrid"
)

// IsValid проверяет, что схема корректна.
func (c CompensationType) IsValid() bool {
	switch c {
	case CompensationPercentage, CompensationFixed, CompensationHybrid:
		return true
	default:
		return false
	}
}

// TeacherStatus - статус преподавателя.
type TeacherStatus string

const (
	TeacherActive   TeacherStatus = "active"
	TeacherInactive TeacherStatus = "inactive"
)

// PaymentStatus - статус ежемесячной выплаты.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Compensation - параметры схемы оплаты. Неиспользуемые поля остаются nil.
type Compensation struct {
	Type         CompensationType `json:"type"`
	TeacherShare *decimal.Decimal `json:"teacherShare,omitempty"`
	AcademyShare *decimal.Decimal `json:"academyShare,omitempty"`
	FixedSalary  *decimal.Decimal `json:"fixedSalary,omitempty"`
	BaseSalary   *decimal.Decimal `json:"baseSalary,omitempty"`
	ProfitShare  *decimal.Decimal `json:"profitShare,omitempty"`
}

// Teacher - преподаватель.
type Teacher struct {
	ID           string
	Name         string
	Subject      string
	Status       TeacherStatus
	Compensation Compensation
}

// IsActive возвращает true для активного преподавателя.
func (t *Teacher) IsActive() bool {
	return t.Status == TeacherActive
}

// TeacherPayment - выплата преподавателю за месяц. Одна запись на преподавателя и месяц.
type TeacherPayment struct {
	ID         string
	TeacherID  string
	Month      int
	Year       int
	AmountPaid decimal.Decimal
	Status     PaymentStatus
	PaidAt     *time.Time
	RecordedBy string
	UpdatedAt  time.Time
}

// Period возвращает месяц выплаты.
func (p *TeacherPayment) Period() shared.Period {
	return shared.Period{Month: p.Month, Year: p.Year}
}

// AddPayout увеличивает выплаченную сумму и помечает запись как paid.
func (p *TeacherPayment) AddPayout(amount decimal.Decimal, by string, now time.Time) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("amount", "must be greater than 0")
	}
	p.AmountPaid = p.AmountPaid.Add(amount)
	p.Status = PaymentPaid
	paid := now
	p.PaidAt = &paid
	p.RecordedBy = by
	p.UpdatedAt = now
	return nil
}

// NewTeacherPayment создаёт пустую запись за месяц.
func NewTeacherPayment(id, teacherID string, period shared.Period, now time.Time) (*TeacherPayment, error) {
	if !period.IsValid() {
		return nil, shared.NewValidationError("month", "invalid month or year")
	}
	if strings.TrimSpace(teacherID) == "" {
		return nil, shared.NewValidationError("teacherId", "is required")
	}
	return &TeacherPayment{
		ID:         id,
		TeacherID:  teacherID,
		Month:      period.Month,
		Year:       period.Year,
		AmountPaid: decimal.Zero,
		Status:     PaymentPending,
		UpdatedAt:  now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORIES
// ══════════════════════════════════════════════════════════════════════════════

// TeacherRepository - чтение преподавателей.
type TeacherRepository interface {
	// GetByID возвращает ErrTeacherNotFound, если преподаватель не найден.
	GetByID(ctx context.Context, id string) (*Teacher, error)

	// ListActive возвращает активных преподавателей, упорядоченных по имени.
	ListActive(ctx context.Context) ([]*Teacher, error)
}

// PaymentRepository - хранилище ежемесячных выплат.
type PaymentRepository interface {
	// GetForPeriodForUpdate возвращает запись за месяц с блокировкой или ErrNotFound.
	GetForPeriodForUpdate(ctx context.Context, teacherID string, period shared.Period) (*TeacherPayment, error)

	// ListPaid возвращает все выплаты со статусом paid за месяц.
	ListPaid(ctx context.Context, period shared.Period) ([]*TeacherPayment, error)

	// Save создаёт или обновляет запись.
	Save(ctx context.Context, p *TeacherPayment) error
}
