package query

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func normalizePage(limit, offset int) (int, int, error) {
	if limit < 0 {
		return 0, 0, shared.NewValidationError("limit", "cannot be negative")
	}
	if offset < 0 {
		return 0, 0, shared.NewValidationError("offset", "cannot be negative")
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, offset, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST TRANSACTIONS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListTransactionsQuery фильтрует журнал по статусу, типу и датам.
type ListTransactionsQuery struct {
	Status string
	Type   string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int

	Caller shared.Caller
}

// filter проверяет параметры и строит фильтр журнала.
func (q ListTransactionsQuery) filter() (ledger.Filter, error) {
	verr := &shared.ValidationError{}
	f := ledger.Filter{From: q.From, To: q.To}

	if q.Status != "" {
		s := ledger.Status(q.Status)
		if s != ledger.StatusFloating && s != ledger.StatusVerified {
			verr.Add("status", "must be FLOATING or VERIFIED")
		}
		f.Status = &s
	}
	if q.Type != "" {
		t := ledger.Type(q.Type)
		if !t.IsValid() {
			verr.Add("type", "must be INCOME or EXPENSE")
		}
		f.Type = &t
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		verr.Add("to", "must not be before from")
	}
	if len(verr.Fields) > 0 {
		return f, verr
	}

	var err error
	f.Limit, f.Offset, err = normalizePage(q.Limit, q.Offset)
	return f, err
}

// ListTransactionsHandler обрабатывает запрос журнала.
type ListTransactionsHandler struct {
	ledger ledger.Repository
}

// NewListTransactionsHandler создаёт обработчик.
func NewListTransactionsHandler(ledgerRepo ledger.Repository) *ListTransactionsHandler {
	return &ListTransactionsHandler{ledger: ledgerRepo}
}

// Handle выполняет запрос. Доступно OWNER и PARTNER.
func (h *ListTransactionsHandler) Handle(ctx context.Context, q ListTransactionsQuery) ([]*ledger.Transaction, error) {
	if err := q.Caller.Authorize("list_transactions", shared.ManagementRoles...); err != nil {
		return nil, err
	}
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	txs, err := h.ledger.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list_transactions: %w", err)
	}
	return txs, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPENSES
// ══════════════════════════════════════════════════════════════════════════════

// ListExpensesQuery фильтрует расходы.
type ListExpensesQuery struct {
	Category string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int

	Caller shared.Caller
}

// ExpensesHandler читает расходы.
type ExpensesHandler struct {
	expenses expense.Repository
}

// NewExpensesHandler создаёт обработчик.
func NewExpensesHandler(expenses expense.Repository) *ExpensesHandler {
	return &ExpensesHandler{expenses: expenses}
}

// List возвращает расходы, новые первыми.
func (h *ExpensesHandler) List(ctx context.Context, q ListExpensesQuery) ([]*expense.Expense, error) {
	if err := q.Caller.Authorize("list_expenses", shared.OperatorRoles...); err != nil {
		return nil, err
	}
	limit, offset, err := normalizePage(q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	items, err := h.expenses.List(ctx, expense.ListFilter{
		Category: q.Category, From: q.From, To: q.To, Limit: limit, Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list_expenses: %w", err)
	}
	return items, nil
}

// Get возвращает один расход с долями.
func (h *ExpensesHandler) Get(ctx context.Context, caller shared.Caller, id string) (*expense.Expense, error) {
	if err := caller.Authorize("get_expense", shared.OperatorRoles...); err != nil {
		return nil, err
	}
	return h.expenses.GetByID(ctx, id)
}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// ══════════════════════════════════════════════════════════════════════════════

// GetSettingsHandler возвращает текущую конфигурацию.
type GetSettingsHandler struct {
	settings settings.Reader
}

// NewGetSettingsHandler создаёт обработчик.
func NewGetSettingsHandler(reader settings.Reader) *GetSettingsHandler {
	return &GetSettingsHandler{settings: reader}
}

// Handle выполняет запрос. Доступно OWNER и PARTNER.
func (h *GetSettingsHandler) Handle(ctx context.Context, caller shared.Caller) (*settings.Configuration, error) {
	if err := caller.Authorize("get_settings", shared.ManagementRoles...); err != nil {
		return nil, err
	}
	return h.settings.Current(ctx)
}
