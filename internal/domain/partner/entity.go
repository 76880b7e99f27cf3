// Package partner содержит доменную модель партнёра академии и его долговых балансов.
// Партнёр - пользователь с ролью OWNER или PARTNER.
package partner

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PARTNER
// ══════════════════════════════════════════════════════════════════════════════

// Partner хранит балансы партнёра по разделённым расходам.
// ExpenseDebt и DebtToOwner растут только при создании доли расхода
// и уменьшаются только при погашении; оба никогда не бывают отрицательными.
type Partner struct {
	// ID - идентификатор пользователя из внешнего сервиса авторизации.
	ID string

	// Name - отображаемое имя.
	Name string

	// Role - OWNER или PARTNER.
	Role shared.Role

	// ExpenseDebt - сумма непогашенных долей расходов.
	ExpenseDebt decimal.Decimal

	// DebtToOwner - текущий долг перед владельцем.
	DebtToOwner decimal.Decimal

	// Version увеличивается при каждом изменении балансов.
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPartner создаёт партнёра с нулевыми балансами.
func NewPartner(id, name string, role shared.Role, now time.Time) (*Partner, error) {
	if id == "" {
		return nil, shared.NewValidationError("id", "partner id is required")
	}
	if role != shared.RoleOwner && role != shared.RolePartner {
		return nil, shared.ErrPartnerNotEnabled
	}
	return &Partner{
		ID:          id,
		Name:        name,
		Role:        role,
		ExpenseDebt: decimal.Zero,
		DebtToOwner: decimal.Zero,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AddShareDebt увеличивает оба баланса на сумму доли. Нулевая доля ничего не меняет.
func (p *Partner) AddShareDebt(amount decimal.Decimal, now time.Time) error {
	if amount.IsNegative() {
		return shared.NewValidationError("amount", "share amount cannot be negative")
	}
	if amount.IsZero() {
		return nil
	}
	p.ExpenseDebt = p.ExpenseDebt.Add(amount)
	p.DebtToOwner = p.DebtToOwner.Add(amount)
	p.touch(now)
	return nil
}

// ReduceDebt уменьшает оба баланса на применённую сумму.
// Возвращает ErrNegativeDebt, если любой баланс ушёл бы ниже нуля; балансы при этом не меняются.
func (p *Partner) ReduceDebt(amount decimal.Decimal, now time.Time) error {
	if amount.IsNegative() {
		return shared.NewValidationError("amount", "amount cannot be negative")
	}
	if amount.GreaterThan(p.ExpenseDebt) || amount.GreaterThan(p.DebtToOwner) {
		return shared.ErrNegativeDebt
	}
	p.ExpenseDebt = p.ExpenseDebt.Sub(amount)
	p.DebtToOwner = p.DebtToOwner.Sub(amount)
	p.touch(now)
	return nil
}

// HasDebt возвращает true, если партнёр что-то должен.
func (p *Partner) HasDebt() bool {
	return p.DebtToOwner.IsPositive()
}

func (p *Partner) touch(now time.Time) {
	p.Version++
	p.UpdatedAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранения партнёров.
type Repository interface {
	// GetByID возвращает партнёра без блокировки.
	// Возвращает ErrPartnerNotFound, если партнёр не найден.
	GetByID(ctx context.Context, id string) (*Partner, error)

	// GetForUpdate возвращает партнёра и блокирует его строку до конца транзакции.
	// Вне транзакции ведёт себя как GetByID.
	GetForUpdate(ctx context.Context, id string) (*Partner, error)

	// List возвращает всех партнёров, упорядоченных по имени.
	List(ctx context.Context) ([]*Partner, error)

	// Save создаёт или обновляет партнёра.
	Save(ctx context.Context, p *Partner) error
}
