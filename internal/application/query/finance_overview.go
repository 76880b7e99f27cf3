package query

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/enrollment"
	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/finance"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET FINANCE OVERVIEW QUERY
// Сводка для панели: доходы, расходы, обязательства перед преподавателями,
// долги партнёров и незакрытая касса. Каждый вызов пересчитывается заново.
// ══════════════════════════════════════════════════════════════════════════════

// GetFinanceOverviewQuery содержит параметры запроса сводки.
type GetFinanceOverviewQuery struct {
	Caller shared.Caller
}

// GetFinanceOverviewHandler обрабатывает запрос сводки.
type GetFinanceOverviewHandler struct {
	payroll  *GetTeacherPayrollHandler
	roster   enrollment.Reader
	expenses expense.Repository
	partners partner.Repository
	ledger   ledger.Repository
}

// NewGetFinanceOverviewHandler создаёт обработчик.
func NewGetFinanceOverviewHandler(
	payroll *GetTeacherPayrollHandler,
	roster enrollment.Reader,
	expenses expense.Repository,
	partners partner.Repository,
	ledgerRepo ledger.Repository,
) *GetFinanceOverviewHandler {
	return &GetFinanceOverviewHandler{
		payroll:  payroll,
		roster:   roster,
		expenses: expenses,
		partners: partners,
		ledger:   ledgerRepo,
	}
}

// Handle выполняет запрос. Доступно OWNER и PARTNER.
func (h *GetFinanceOverviewHandler) Handle(ctx context.Context, q GetFinanceOverviewQuery) (*finance.Overview, error) {
	if err := q.Caller.Authorize("get_finance_overview", shared.ManagementRoles...); err != nil {
		return nil, err
	}

	sheet, err := h.payroll.Compute(ctx)
	if err != nil {
		return nil, err
	}

	students, err := h.roster.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_finance_overview: list students: %w", err)
	}
	income, expected := enrollment.Totals(students)

	expenses, err := h.expenses.TotalAmount(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_finance_overview: total expenses: %w", err)
	}

	partners, err := h.partners.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_finance_overview: list partners: %w", err)
	}
	partnerDebt := decimal.Zero
	for _, p := range partners {
		partnerDebt = partnerDebt.Add(p.DebtToOwner)
	}

	floating, err := h.floatingCash(ctx)
	if err != nil {
		return nil, err
	}

	overview := finance.Compose(finance.Inputs{
		Period:              sheet.Period,
		TotalIncome:         income,
		TotalExpected:       expected,
		TotalExpenses:       expenses,
		TotalTeacherPayouts: sheet.TotalTeacherPayouts,
		Payroll:             sheet.Sheet,
		TotalPartnerDebt:    partnerDebt,
		FloatingCash:        floating,
	})
	return &overview, nil
}

// floatingCash - приход минус расход по записям, которые ещё не зафиксированы.
func (h *GetFinanceOverviewHandler) floatingCash(ctx context.Context) (decimal.Decimal, error) {
	status := ledger.StatusFloating
	txs, err := h.ledger.List(ctx, ledger.Filter{Status: &status})
	if err != nil {
		return decimal.Zero, fmt.Errorf("get_finance_overview: list floating entries: %w", err)
	}
	total := decimal.Zero
	for _, t := range txs {
		if t.Type == ledger.TypeIncome {
			total = total.Add(t.Amount)
		} else {
			total = total.Sub(t.Amount)
		}
	}
	return total, nil
}
