package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE EXPENSE COMMAND
// Removes a whole expense and reverses the partner debt its shares created.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteExpenseCommand identifies the expense to delete.
type DeleteExpenseCommand struct {
	ExpenseID string
	Caller    shared.Caller
}

// DeleteExpenseResult contains the removed expense and the partners whose debt was reversed.
type DeleteExpenseResult struct {
	Expense       *expense.Expense
	Partners      []*partner.Partner
	TransactionID string
}

// DeleteExpenseHandler handles the DeleteExpenseCommand.
type DeleteExpenseHandler struct {
	deps Deps
}

// NewDeleteExpenseHandler creates a new handler.
func NewDeleteExpenseHandler(deps Deps) *DeleteExpenseHandler {
	return &DeleteExpenseHandler{deps: deps}
}

// Handle executes the command. An expense with any repaid share cannot be deleted.
func (h *DeleteExpenseHandler) Handle(ctx context.Context, cmd DeleteExpenseCommand) (*DeleteExpenseResult, error) {
	if err := cmd.Caller.Authorize("delete_expense", shared.OperatorRoles...); err != nil {
		return nil, err
	}
	if cmd.ExpenseID == "" {
		return nil, shared.NewValidationError("id", "expense id is required")
	}

	preview, err := h.deps.Expenses.GetByID(ctx, cmd.ExpenseID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(preview.Shares))
	for _, s := range preview.Shares {
		keys = append(keys, partnerLockKey(s.PartnerID))
	}

	var result *DeleteExpenseResult
	err = h.deps.atomically(ctx, keys, func(ctx context.Context) error {
		now := h.deps.now()

		exp, err := h.deps.Expenses.GetByID(ctx, cmd.ExpenseID)
		if err != nil {
			return err
		}
		if exp.HasRepayments() {
			return shared.ErrExpenseHasRepayments
		}

		touched := make([]*partner.Partner, 0, len(exp.Shares))
		for _, s := range exp.Shares {
			p, err := h.deps.Partners.GetForUpdate(ctx, s.PartnerID)
			if err != nil {
				return fmt.Errorf("delete_expense: load partner %s: %w", s.PartnerID, err)
			}
			if err := p.ReduceDebt(s.Amount, now); err != nil {
				return err
			}
			if err := h.deps.Partners.Save(ctx, p); err != nil {
				return fmt.Errorf("delete_expense: save partner %s: %w", p.ID, err)
			}
			touched = append(touched, p)
		}

		if err := h.deps.Expenses.Delete(ctx, exp.ID); err != nil {
			return fmt.Errorf("delete_expense: delete expense: %w", err)
		}

		tx, err := ledger.NewVerified(ledger.Entry{
			ID:          h.deps.IDs.NewID(),
			Type:        ledger.TypeIncome,
			Category:    ledger.CategoryExpenseReverse,
			Amount:      exp.Amount,
			CollectedBy: cmd.Caller.UserID,
			Reference:   exp.ID,
			Description: "reversal of " + exp.Title,
		}, now)
		if err != nil {
			return err
		}
		if err := h.deps.Ledger.Append(ctx, tx); err != nil {
			return fmt.Errorf("delete_expense: append journal entry: %w", err)
		}

		result = &DeleteExpenseResult{Expense: exp, Partners: touched, TransactionID: tx.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish("delete_expense", shared.NewExpenseDeletedEvent(
		result.Expense.ID, result.Expense.Amount, cmd.Caller.UserID, len(result.Expense.Shares)))
	h.deps.log().Info("expense deleted",
		logger.ExpenseID(result.Expense.ID),
		logger.Int("reversed_shares", len(result.Expense.Shares)),
	)
	return result, nil
}
