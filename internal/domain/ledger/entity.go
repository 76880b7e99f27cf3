// Package ledger содержит журнал денежных движений академии.
// Записи только добавляются; единственное изменение - переход FLOATING → VERIFIED
// при закрытии дня.
package ledger

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

// Type - направление движения денег.
type Type string

const (
	TypeIncome  Type = "INCOME"
	TypeExpense Type = "EXPENSE"
)

// IsValid проверяет, что тип корректен.
func (t Type) IsValid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Status - состояние записи журнала.
type Status string

const (
	// StatusFloating - деньги получены сегодня, день ещё не закрыт.
	StatusFloating Status = "FLOATING"
	// StatusVerified - запись зафиксирована закрытием дня. Обратного перехода нет.
	StatusVerified Status = "VERIFIED"
)

// Категории, которые создаёт сам движок.
const (
	CategoryExpenseReverse    = "expense_reversal"
	CategoryTeacherSalary     = "teacher_salary"
	CategoryPartnerSettlement = "partner_settlement"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: TRANSACTION
// ══════════════════════════════════════════════════════════════════════════════

// Transaction - одна запись журнала.
type Transaction struct {
	ID          string
	Type        Type
	Category    string
	Amount      decimal.Decimal
	Date        time.Time
	CollectedBy string
	Status      Status

	// Reference - идентификатор исходной сущности (расход, выплата), если есть.
	Reference   string
	Description string

	CreatedAt  time.Time
	VerifiedAt *time.Time
	VerifiedBy string
}

// Entry - параметры новой записи.
type Entry struct {
	ID          string
	Type        Type
	Category    string
	Amount      decimal.Decimal
	Date        time.Time
	CollectedBy string
	Reference   string
	Description string
}

func newTransaction(e Entry, status Status, now time.Time) (*Transaction, error) {
	verr := &shared.ValidationError{}
	if e.ID == "" {
		verr.Add("id", "is required")
	}
	if !e.Type.IsValid() {
		verr.Add("type", "must be INCOME or EXPENSE")
	}
	if strings.TrimSpace(e.Category) == "" {
		verr.Add("category", "is required")
	}
	if !e.Amount.IsPositive() {
		verr.Add("amount", "must be greater than 0")
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	if e.Date.IsZero() {
		e.Date = now
	}

	tx := &Transaction{
		ID:          e.ID,
		Type:        e.Type,
		Category:    strings.TrimSpace(e.Category),
		Amount:      e.Amount,
		Date:        e.Date,
		CollectedBy: e.CollectedBy,
		Status:      status,
		Reference:   e.Reference,
		Description: e.Description,
		CreatedAt:   now,
	}
	if status == StatusVerified {
		v := now
		tx.VerifiedAt = &v
		tx.VerifiedBy = e.CollectedBy
	}
	return tx, nil
}

// NewFloating создаёт незафиксированную запись (касса текущего дня).
func NewFloating(e Entry, now time.Time) (*Transaction, error) {
	return newTransaction(e, StatusFloating, now)
}

// NewVerified создаёт запись, сразу зафиксированную (например, расход).
func NewVerified(e Entry, now time.Time) (*Transaction, error) {
	return newTransaction(e, StatusVerified, now)
}

// Verify переводит запись FLOATING → VERIFIED.
// Возвращает ErrAlreadyVerified для уже зафиксированной записи.
func (t *Transaction) Verify(by string, at time.Time) error {
	if t.Status == StatusVerified {
		return shared.ErrAlreadyVerified
	}
	t.Status = StatusVerified
	v := at
	t.VerifiedAt = &v
	t.VerifiedBy = by
	return nil
}

// IsFloating возвращает true для незафиксированной записи.
func (t *Transaction) IsFloating() bool {
	return t.Status == StatusFloating
}

// ══════════════════════════════════════════════════════════════════════════════
// DAY CLOSING
// ══════════════════════════════════════════════════════════════════════════════

// DayClosing - запись о закрытии дня.
type DayClosing struct {
	ID           string
	Day          string // YYYY-MM-DD в часовом поясе академии
	Boundary     time.Time
	ClosedBy     string
	ClosedAt     time.Time
	Transitioned int
	Income       decimal.Decimal
	Expense      decimal.Decimal
}

// CloseBatch фиксирует все переданные FLOATING-записи и подводит итоги.
// Записи с Date позже boundary не трогаются.
func CloseBatch(txs []*Transaction, boundary time.Time, by string, at time.Time) (verified []*Transaction, income, expense decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for _, t := range txs {
		if !t.IsFloating() || t.Date.After(boundary) {
			continue
		}
		if err := t.Verify(by, at); err != nil {
			continue
		}
		verified = append(verified, t)
		if t.Type == TypeIncome {
			income = income.Add(t.Amount)
		} else {
			expense = expense.Add(t.Amount)
		}
	}
	return verified, income, expense
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Filter - фильтр списка записей.
type Filter struct {
	Status *Status
	Type   *Type
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

// Repository определяет операции журнала.
type Repository interface {
	// Append добавляет запись.
	Append(ctx context.Context, t *Transaction) error

	// FloatingUntilForUpdate возвращает FLOATING-записи с Date <= boundary
	// и блокирует их до конца транзакции.
	FloatingUntilForUpdate(ctx context.Context, boundary time.Time) ([]*Transaction, error)

	// MarkVerified сохраняет переход записей в VERIFIED.
	// Обновляет только записи, которые ещё FLOATING, и возвращает их число.
	MarkVerified(ctx context.Context, txs []*Transaction) (int, error)

	// List возвращает записи по фильтру, новые первыми.
	List(ctx context.Context, f Filter) ([]*Transaction, error)

	// SaveClosing сохраняет запись о закрытии дня.
	SaveClosing(ctx context.Context, c *DayClosing) error

	// LastClosing возвращает последнее закрытие для дня или ErrNotFound.
	LastClosing(ctx context.Context, day string) (*DayClosing, error)
}
