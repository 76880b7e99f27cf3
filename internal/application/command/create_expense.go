package command

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/application/validation"
	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE EXPENSE COMMAND
// Records an academy expense and splits it between partners according to the
// active split configuration.
// ══════════════════════════════════════════════════════════════════════════════

// CreateExpenseCommand contains the data needed to record an expense.
type CreateExpenseCommand struct {
	Title       string          `json:"title" validate:"notblank,max=200"`
	Category    string          `json:"category" validate:"notblank,max=100"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	VendorName  string          `json:"vendorName" validate:"notblank,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	ExpenseDate time.Time       `json:"expenseDate" validate:"required"`
	DueDate     *time.Time      `json:"dueDate"`
	PaidByType  string          `json:"paidByType" validate:"omitempty,oneof=ACADEMY_CASH OWNER_POCKET BANK_TRANSFER"`
	Status      string          `json:"status" validate:"omitempty,oneof=pending paid"`

	Caller shared.Caller `json:"-"`
}

// Validate validates the command.
func (c CreateExpenseCommand) Validate() error {
	return validation.Struct(c)
}

// CreateExpenseResult contains the created expense and the partners whose debt grew.
type CreateExpenseResult struct {
	Expense       *expense.Expense
	Partners      []*partner.Partner
	TransactionID string
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CreateExpenseHandler handles the CreateExpenseCommand.
type CreateExpenseHandler struct {
	deps Deps
}

// NewCreateExpenseHandler creates a new handler.
func NewCreateExpenseHandler(deps Deps) *CreateExpenseHandler {
	return &CreateExpenseHandler{deps: deps}
}

// Handle executes the command. The expense, its shares, every partner debt
// increment and the journal entry commit together or not at all.
func (h *CreateExpenseHandler) Handle(ctx context.Context, cmd CreateExpenseCommand) (*CreateExpenseResult, error) {
	if err := cmd.Caller.Authorize("create_expense", shared.OperatorRoles...); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	cfg, err := h.deps.Settings.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("create_expense: load configuration: %w", err)
	}
	mode := cfg.SplitMode()

	var keys []string
	for _, a := range mode.Allocations() {
		if a.Resolved() {
			keys = append(keys, partnerLockKey(a.PartnerID))
		}
	}

	var result *CreateExpenseResult
	err = h.deps.atomically(ctx, keys, func(ctx context.Context) error {
		now := h.deps.now()

		locked := make(map[string]*partner.Partner)
		var lookupErr error
		resolve := func(id string) (string, bool) {
			p, err := h.deps.Partners.GetForUpdate(ctx, id)
			if err != nil {
				if !shared.IsNotFound(err) && lookupErr == nil {
					lookupErr = err
				}
				return "", false
			}
			locked[id] = p
			return p.Name, true
		}

		plan, err := expense.PlanSplit(mode, resolve)
		if lookupErr != nil {
			return fmt.Errorf("create_expense: load partners: %w", lookupErr)
		}
		if err != nil {
			return err
		}

		exp, err := expense.NewExpense(expense.NewExpenseParams{
			ID:          h.deps.IDs.NewID(),
			Title:       cmd.Title,
			Category:    cmd.Category,
			Amount:      cmd.Amount,
			VendorName:  cmd.VendorName,
			Description: cmd.Description,
			ExpenseDate: cmd.ExpenseDate,
			DueDate:     cmd.DueDate,
			PaidByType:  expense.PaidByType(cmd.PaidByType),
			PaidBy:      cmd.Caller.UserID,
			Status:      expense.Status(cmd.Status),
			CreatedBy:   cmd.Caller.UserID,
		}, now)
		if err != nil {
			return err
		}

		shares := expense.ComputeShares(exp.Amount, plan, h.deps.IDs.NewID, now)
		if err := exp.AttachShares(shares); err != nil {
			return err
		}
		if err := h.deps.Expenses.Create(ctx, exp); err != nil {
			return fmt.Errorf("create_expense: save expense: %w", err)
		}

		touched := make([]*partner.Partner, 0, len(shares))
		for _, s := range shares {
			p := locked[s.PartnerID]
			if err := p.AddShareDebt(s.Amount, now); err != nil {
				return err
			}
			if err := h.deps.Partners.Save(ctx, p); err != nil {
				return fmt.Errorf("create_expense: save partner %s: %w", p.ID, err)
			}
			touched = append(touched, p)
		}

		tx, err := ledger.NewVerified(ledger.Entry{
			ID:          h.deps.IDs.NewID(),
			Type:        ledger.TypeExpense,
			Category:    exp.Category,
			Amount:      exp.Amount,
			Date:        exp.ExpenseDate,
			CollectedBy: cmd.Caller.UserID,
			Reference:   exp.ID,
			Description: exp.Title,
		}, now)
		if err != nil {
			return err
		}
		if err := h.deps.Ledger.Append(ctx, tx); err != nil {
			return fmt.Errorf("create_expense: append journal entry: %w", err)
		}

		result = &CreateExpenseResult{Expense: exp, Partners: touched, TransactionID: tx.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	exp := result.Expense
	shareMap := make(map[string]string, len(exp.Shares))
	for _, s := range exp.Shares {
		shareMap[s.PartnerID] = s.Amount.String()
	}
	h.deps.publish("create_expense",
		shared.NewExpenseCreatedEvent(exp.ID, exp.Title, exp.Amount, exp.PaidBy, shareMap))

	h.deps.log().Info("expense created",
		logger.ExpenseID(exp.ID),
		logger.Money("amount", exp.Amount),
		logger.Int("shares", len(exp.Shares)),
		logger.Bool("has_partner_debt", exp.HasPartnerDebt),
	)
	return result, nil
}
