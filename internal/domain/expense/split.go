package expense

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SPLITTING
// ══════════════════════════════════════════════════════════════════════════════

// Plan - результат проверки конфигурации разделения перед созданием расхода.
type Plan struct {
	Mode        settings.ModeKind
	Allocations []settings.Allocation
}

// Empty возвращает true, если ни один партнёр не определён: расход без долга партнёров.
func (p Plan) Empty() bool {
	return len(p.Allocations) == 0
}

// PlanSplit проверяет режим разделения.
//
//   - ни одна запись не указывает на партнёра - пустой план, доли не создаются;
//   - часть записей без партнёра или сумма процентов не равна 100 - ErrSplitMisconfigured;
//   - иначе план со всеми активными записями.
//
// resolve проверяет существование партнёра и возвращает его имя.
func PlanSplit(mode settings.SplitMode, resolve func(partnerID string) (string, bool)) (Plan, error) {
	allocs := mode.Allocations()
	plan := Plan{Mode: mode.Kind()}

	resolved := make([]settings.Allocation, 0, len(allocs))
	for _, a := range allocs {
		if !a.Resolved() {
			continue
		}
		name, ok := resolve(a.PartnerID)
		if !ok {
			continue
		}
		if a.PartnerName == "" || mode.Kind() == settings.ModeLegacy {
			a.PartnerName = name
		}
		resolved = append(resolved, a)
	}

	if len(resolved) == 0 {
		return plan, nil
	}
	if len(resolved) != len(allocs) {
		return plan, shared.WrapError("expense", "Split", shared.ErrConflict,
			"split configuration names partners that do not exist", shared.ErrSplitMisconfigured)
	}
	if total := mode.TotalPercentage(); !total.Equal(shared.Hundred) {
		return plan, shared.WrapError("expense", "Split", shared.ErrConflict,
			"split percentages sum to "+total.String()+", expected 100", shared.ErrSplitMisconfigured)
	}

	plan.Allocations = resolved
	return plan, nil
}

// ComputeShares делит сумму по плану: каждая доля = round(amount × pct / 100).
func ComputeShares(amount decimal.Decimal, plan Plan, newID func() string, now time.Time) []*Share {
	shares := make([]*Share, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		shares = append(shares, &Share{
			ID:              newID(),
			PartnerID:       a.PartnerID,
			PartnerName:     a.PartnerName,
			Percentage:      a.Percentage,
			Amount:          shared.PercentOf(amount, a.Percentage),
			PaidAmount:      decimal.Zero,
			Status:          ShareUnpaid,
			RepaymentStatus: RepaymentPending,
			CreatedAt:       now,
		})
	}
	return shares
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ListFilter - фильтр списка расходов.
type ListFilter struct {
	Category string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// Repository определяет операции хранения расходов и долей.
type Repository interface {
	// Create сохраняет расход вместе с долями.
	Create(ctx context.Context, e *Expense) error

	// GetByID возвращает расход с долями.
	// Возвращает ErrExpenseNotFound, если расход не найден.
	GetByID(ctx context.Context, id string) (*Expense, error)

	// List возвращает расходы, новые первыми.
	List(ctx context.Context, f ListFilter) ([]*Expense, error)

	// UpdateStatus сохраняет статус оплаты расхода.
	UpdateStatus(ctx context.Context, e *Expense) error

	// Delete удаляет расход и его доли.
	Delete(ctx context.Context, id string) error

	// OpenSharesForUpdate возвращает непогашенные доли партнёра, самые старые первыми,
	// и блокирует их до конца транзакции.
	OpenSharesForUpdate(ctx context.Context, partnerID string) ([]*Share, error)

	// OpenShares - то же без блокировки.
	OpenShares(ctx context.Context, partnerID string) ([]*Share, error)

	// UpdateShares сохраняет погашения долей.
	UpdateShares(ctx context.Context, shares []*Share) error

	// TotalAmount возвращает сумму всех расходов.
	TotalAmount(ctx context.Context) (decimal.Decimal, error)
}
