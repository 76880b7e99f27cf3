// Package expense содержит доменную модель расхода академии и долей партнёров.
// Расход и его доли создаются атомарно; удаляется только расход целиком.
package expense

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет статус оплаты расхода.
type Status string

const (
	// StatusPending - расход ещё не оплачен поставщику.
	StatusPending Status = "pending"
	// StatusPaid - расход оплачен.
	StatusPaid Status = "paid"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusPaid
}

// PaidByType определяет источник денег для оплаты.
type PaidByType string

const (
	// PaidByAcademyCash - оплачено из кассы академии.
	PaidByAcademyCash PaidByType = "ACADEMY_CASH"
	// PaidByOwnerPocket - оплачено владельцем из собственных средств.
	PaidByOwnerPocket PaidByType = "OWNER_POCKET"
	// PaidByBankTransfer - оплачено банковским переводом.
	PaidByBankTransfer PaidByType = "BANK_TRANSFER"
)

// IsValid проверяет, что тип корректен.
func (p PaidByType) IsValid() bool {
	switch p {
	case PaidByAcademyCash, PaidByOwnerPocket, PaidByBankTransfer:
		return true
	default:
		return false
	}
}

// ShareStatus - статус доли партнёра.
type ShareStatus string

const (
	ShareUnpaid ShareStatus = "UNPAID"
	SharePaid   ShareStatus = "PAID"
)

// RepaymentStatus - статус погашения доли.
type RepaymentStatus string

const (
	// RepaymentPending - погашений ещё не было.
	RepaymentPending RepaymentStatus = "PENDING"
	// RepaymentPartial - доля погашена частично, статус доли остаётся UNPAID.
	RepaymentPartial RepaymentStatus = "PARTIAL"
	// RepaymentSettled - доля погашена полностью.
	RepaymentSettled RepaymentStatus = "SETTLED"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARE
// ══════════════════════════════════════════════════════════════════════════════

// Share - доля одного партнёра в расходе.
type Share struct {
	ID          string
	ExpenseID   string
	PartnerID   string
	PartnerName string
	Percentage  decimal.Decimal

	// Amount = round(expense.Amount × Percentage / 100).
	Amount decimal.Decimal

	// PaidAmount - сколько уже погашено.
	PaidAmount decimal.Decimal

	Status          ShareStatus
	RepaymentStatus RepaymentStatus
	CreatedAt       time.Time
	SettledAt       *time.Time
}

// Outstanding возвращает непогашенный остаток доли.
func (s *Share) Outstanding() decimal.Decimal {
	return shared.MaxZero(s.Amount.Sub(s.PaidAmount))
}

// IsOpen возвращает true, если по доле ещё есть долг.
func (s *Share) IsOpen() bool {
	return s.Status == ShareUnpaid && s.Outstanding().IsPositive()
}

// HasRepayments возвращает true, если по доле были погашения.
func (s *Share) HasRepayments() bool {
	return s.PaidAmount.IsPositive()
}

// Apply погашает долю на сумму не больше остатка и возвращает применённую сумму.
// Полностью погашенная доля становится PAID/SETTLED, частично - UNPAID/PARTIAL.
func (s *Share) Apply(budget decimal.Decimal, now time.Time) decimal.Decimal {
	if !budget.IsPositive() || !s.IsOpen() {
		return decimal.Zero
	}
	applied := decimal.Min(budget, s.Outstanding())
	s.PaidAmount = s.PaidAmount.Add(applied)

	if s.Outstanding().IsZero() {
		s.Status = SharePaid
		s.RepaymentStatus = RepaymentSettled
		settled := now
		s.SettledAt = &settled
	} else {
		s.RepaymentStatus = RepaymentPartial
	}
	return applied
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: EXPENSE
// ══════════════════════════════════════════════════════════════════════════════

// Expense - расход академии с автоматическим разделением между партнёрами.
type Expense struct {
	ID          string
	Title       string
	Category    string
	Amount      decimal.Decimal
	VendorName  string
	Description string

	// ExpenseDate - дата расхода; DueDate - срок оплаты (опционально).
	ExpenseDate time.Time
	DueDate     *time.Time

	PaidByType PaidByType
	PaidBy     string
	Status     Status

	HasPartnerDebt bool
	Shares         []*Share

	// SplitRatio - снимок процентов на момент создания (partnerID -> %).
	// Не меняется при последующем изменении конфигурации.
	SplitRatio map[string]decimal.Decimal

	CreatedBy string
	CreatedAt time.Time
	PaidAt    *time.Time
}

// NewExpenseParams - параметры создания расхода.
type NewExpenseParams struct {
	ID          string
	Title       string
	Category    string
	Amount      decimal.Decimal
	VendorName  string
	Description string
	ExpenseDate time.Time
	DueDate     *time.Time
	PaidByType  PaidByType
	PaidBy      string
	Status      Status
	CreatedBy   string
}

// NewExpense создаёт расход без долей. Доли добавляются через AttachShares.
func NewExpense(p NewExpenseParams, now time.Time) (*Expense, error) {
	verr := &shared.ValidationError{}
	if p.ID == "" {
		verr.Add("id", "is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		verr.Add("title", "is required")
	}
	if strings.TrimSpace(p.Category) == "" {
		verr.Add("category", "is required")
	}
	if !p.Amount.IsPositive() {
		verr.Add("amount", "must be greater than 0")
	}
	if p.ExpenseDate.IsZero() {
		verr.Add("expenseDate", "is required")
	}
	if p.PaidByType == "" {
		p.PaidByType = PaidByAcademyCash
	}
	if !p.PaidByType.IsValid() {
		verr.Add("paidByType", "unknown payment source")
	}
	if p.Status == "" {
		p.Status = defaultStatus(p.PaidByType)
	}
	if !p.Status.IsValid() {
		verr.Add("status", "must be pending or paid")
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	e := &Expense{
		ID:          p.ID,
		Title:       strings.TrimSpace(p.Title),
		Category:    strings.TrimSpace(p.Category),
		Amount:      p.Amount,
		VendorName:  strings.TrimSpace(p.VendorName),
		Description: p.Description,
		ExpenseDate: p.ExpenseDate,
		DueDate:     p.DueDate,
		PaidByType:  p.PaidByType,
		PaidBy:      p.PaidBy,
		Status:      p.Status,
		SplitRatio:  map[string]decimal.Decimal{},
		CreatedBy:   p.CreatedBy,
		CreatedAt:   now,
	}
	if e.Status == StatusPaid {
		paid := now
		e.PaidAt = &paid
	}
	return e, nil
}

// Расход из кассы считается оплаченным в момент записи.
func defaultStatus(t PaidByType) Status {
	if t == PaidByAcademyCash {
		return StatusPaid
	}
	return StatusPending
}

// AttachShares закрепляет доли и снимок процентов. Повторный вызов запрещён.
func (e *Expense) AttachShares(shares []*Share) error {
	if len(e.Shares) > 0 {
		return shared.NewDomainError("expense", "AttachShares", shared.ErrInvalidState, "shares are already attached")
	}
	e.Shares = shares
	e.HasPartnerDebt = len(shares) > 0
	for _, s := range shares {
		s.ExpenseID = e.ID
		e.SplitRatio[s.PartnerID] = s.Percentage
	}
	return nil
}

// MarkPaid переводит расход в статус paid.
// Возвращает ErrExpenseAlreadyPaid, если расход уже оплачен.
func (e *Expense) MarkPaid(now time.Time) error {
	if e.Status == StatusPaid {
		return shared.ErrExpenseAlreadyPaid
	}
	e.Status = StatusPaid
	paid := now
	e.PaidAt = &paid
	return nil
}

// HasRepayments возвращает true, если хотя бы одна доля получила погашение.
func (e *Expense) HasRepayments() bool {
	for _, s := range e.Shares {
		if s.HasRepayments() {
			return true
		}
	}
	return false
}

// SharesTotal возвращает сумму всех долей.
func (e *Expense) SharesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range e.Shares {
		total = total.Add(s.Amount)
	}
	return total
}
