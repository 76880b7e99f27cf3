package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
)

// MarkExpensePaidCommand moves a pending expense to paid.
type MarkExpensePaidCommand struct {
	ExpenseID string
	Caller    shared.Caller
}

// MarkExpensePaidHandler handles the MarkExpensePaidCommand.
type MarkExpensePaidHandler struct {
	deps Deps
}

// NewMarkExpensePaidHandler creates a new handler.
func NewMarkExpensePaidHandler(deps Deps) *MarkExpensePaidHandler {
	return &MarkExpensePaidHandler{deps: deps}
}

// Handle executes the command. Returns ErrExpenseAlreadyPaid for a paid expense.
func (h *MarkExpensePaidHandler) Handle(ctx context.Context, cmd MarkExpensePaidCommand) (*expense.Expense, error) {
	if err := cmd.Caller.Authorize("mark_expense_paid", shared.OperatorRoles...); err != nil {
		return nil, err
	}
	if cmd.ExpenseID == "" {
		return nil, shared.NewValidationError("id", "expense id is required")
	}

	var exp *expense.Expense
	err := h.deps.atomically(ctx, []string{"expense:" + cmd.ExpenseID}, func(ctx context.Context) error {
		var err error
		exp, err = h.deps.Expenses.GetByID(ctx, cmd.ExpenseID)
		if err != nil {
			return err
		}
		if err := exp.MarkPaid(h.deps.now()); err != nil {
			return err
		}
		if err := h.deps.Expenses.UpdateStatus(ctx, exp); err != nil {
			return fmt.Errorf("mark_expense_paid: save status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.log().Info("expense marked paid", logger.ExpenseID(exp.ID), logger.UserID(cmd.Caller.UserID))
	return exp, nil
}
