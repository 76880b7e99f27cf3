package command

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/application/validation"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
)

// RecordIncomeCommand contains cash collected at the desk.
type RecordIncomeCommand struct {
	Category    string          `json:"category" validate:"notblank,max=100"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Date        *time.Time      `json:"date"`
	Description string          `json:"description" validate:"max=1000"`
	Reference   string          `json:"reference" validate:"max=100"`

	Caller shared.Caller `json:"-"`
}

// Validate validates the command.
func (c RecordIncomeCommand) Validate() error {
	return validation.Struct(c)
}

// RecordIncomeHandler appends FLOATING income to the journal.
type RecordIncomeHandler struct {
	deps Deps
}

// NewRecordIncomeHandler creates a new handler.
func NewRecordIncomeHandler(deps Deps) *RecordIncomeHandler {
	return &RecordIncomeHandler{deps: deps}
}

// Handle executes the command.
func (h *RecordIncomeHandler) Handle(ctx context.Context, cmd RecordIncomeCommand) (*ledger.Transaction, error) {
	if err := cmd.Caller.Authorize("record_income", shared.OperatorRoles...); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	date, err := h.deps.floatingDate(cmd.Date)
	if err != nil {
		return nil, err
	}
	tx, err := ledger.NewFloating(ledger.Entry{
		ID:          h.deps.IDs.NewID(),
		Type:        ledger.TypeIncome,
		Category:    cmd.Category,
		Amount:      cmd.Amount,
		Date:        date,
		CollectedBy: cmd.Caller.UserID,
		Reference:   cmd.Reference,
		Description: cmd.Description,
	}, h.deps.now())
	if err != nil {
		return nil, err
	}

	err = h.deps.atomically(ctx, nil, func(ctx context.Context) error {
		if err := h.deps.Ledger.Append(ctx, tx); err != nil {
			return fmt.Errorf("record_income: append journal entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish("record_income",
		shared.NewIncomeRecordedEvent(tx.ID, tx.Category, tx.Amount, tx.CollectedBy))
	h.deps.log().Info("income recorded",
		logger.String("transaction_id", tx.ID),
		logger.String("category", tx.Category),
		logger.Money("amount", tx.Amount),
	)
	return tx, nil
}
