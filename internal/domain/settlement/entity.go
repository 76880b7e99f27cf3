// Package settlement содержит модель погашения долга партнёром и правило
// распределения погашения по долям (FIFO).
package settlement

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// Method - способ получения денег от партнёра.
type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodOther        Method = "other"
)

// IsValid проверяет, что способ корректен.
func (m Method) IsValid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodOther:
		return true
	default:
		return false
	}
}

// Allocation - часть погашения, применённая к одной доле.
type Allocation struct {
	ShareID   string          `json:"shareId"`
	ExpenseID string          `json:"expenseId"`
	Applied   decimal.Decimal `json:"applied"`
	Settled   bool            `json:"settled"`
}

// Settlement - неизменяемая запись о полученных от партнёра деньгах.
type Settlement struct {
	ID          string
	PartnerID   string
	PartnerName string
	Amount      decimal.Decimal
	Date        time.Time
	Method      Method
	Notes       string
	RecordedBy  string
	Allocations []Allocation
	CreatedAt   time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// FIFO ALLOCATION
// ══════════════════════════════════════════════════════════════════════════════

// Result - итог распределения погашения.
type Result struct {
	Applied     decimal.Decimal
	Allocations []Allocation
	Touched     []*expense.Share
}

// OutstandingTotal возвращает сумму остатков по открытым долям.
func OutstandingTotal(shares []*expense.Share) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		if s.IsOpen() {
			total = total.Add(s.Outstanding())
		}
	}
	return total
}

// Allocate распределяет amount по долям в переданном порядке (самые старые первыми).
// Доля, целиком покрытая остатком бюджета, становится PAID/SETTLED; последняя доля,
// на которую бюджета не хватило, погашается частично (PARTIAL).
// Сумма больше общего остатка отклоняется как ошибка валидации, доли не меняются.
func Allocate(shares []*expense.Share, amount decimal.Decimal, now time.Time) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, shared.NewValidationError("amount", "must be greater than 0")
	}
	owed := OutstandingTotal(shares)
	if amount.GreaterThan(owed) {
		return Result{}, shared.NewValidationError("amount", "exceeds outstanding share total of "+owed.String())
	}

	res := Result{Applied: decimal.Zero}
	budget := amount
	for _, s := range shares {
		if !budget.IsPositive() {
			break
		}
		applied := s.Apply(budget, now)
		if applied.IsZero() {
			continue
		}
		budget = budget.Sub(applied)
		res.Applied = res.Applied.Add(applied)
		res.Touched = append(res.Touched, s)
		res.Allocations = append(res.Allocations, Allocation{
			ShareID:   s.ID,
			ExpenseID: s.ExpenseID,
			Applied:   applied,
			Settled:   s.Status == expense.SharePaid,
		})
	}
	return res, nil
}

// NewSettlementParams - параметры записи погашения.
type NewSettlementParams struct {
	ID          string
	PartnerID   string
	PartnerName string
	Amount      decimal.Decimal
	Date        time.Time
	Method      Method
	Notes       string
	RecordedBy  string
	Allocations []Allocation
}

// New создаёт запись погашения.
func New(p NewSettlementParams, now time.Time) (*Settlement, error) {
	if p.Method == "" {
		p.Method = MethodCash
	}
	if !p.Method.IsValid() {
		return nil, shared.NewValidationError("method", "must be cash, bank_transfer or other")
	}
	if p.Date.IsZero() {
		p.Date = now
	}
	return &Settlement{
		ID:          p.ID,
		PartnerID:   p.PartnerID,
		PartnerName: p.PartnerName,
		Amount:      p.Amount,
		Date:        p.Date,
		Method:      p.Method,
		Notes:       strings.TrimSpace(p.Notes),
		RecordedBy:  p.RecordedBy,
		Allocations: p.Allocations,
		CreatedAt:   now,
	}, nil
}

// Repository - хранилище погашений (только добавление).
type Repository interface {
	Create(ctx context.Context, s *Settlement) error
	ListByPartner(ctx context.Context, partnerID string) ([]*Settlement, error)
}
