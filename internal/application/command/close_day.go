package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
	"github.com/alem-hub/academy-finance/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLOSE DAY COMMAND
// Locks every FLOATING journal entry up to the end of a day into VERIFIED.
// ══════════════════════════════════════════════════════════════════════════════

// CloseDayCommand contains the data needed to close a day.
type CloseDayCommand struct {
	// Day is YYYY-MM-DD in the academy timezone. Empty means today.
	Day string `json:"day"`

	Caller shared.Caller `json:"-"`
}

// CloseDayResult reports what the closing changed.
type CloseDayResult struct {
	ClosingID    string
	Day          string
	Transitioned int
	Income       decimal.Decimal
	Expense      decimal.Decimal

	// AlreadyClosed is true when the day had been closed before and nothing was left to verify.
	AlreadyClosed bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CloseDayHandler handles the CloseDayCommand.
type CloseDayHandler struct {
	deps Deps
}

// NewCloseDayHandler creates a new handler.
func NewCloseDayHandler(deps Deps) *CloseDayHandler {
	return &CloseDayHandler{deps: deps}
}

// Handle executes the command. The whole batch flips in one unit.
func (h *CloseDayHandler) Handle(ctx context.Context, cmd CloseDayCommand) (*CloseDayResult, error) {
	if err := cmd.Caller.Authorize("close_day", shared.ManagementRoles...); err != nil {
		return nil, err
	}

	now := h.deps.now()
	day := timeutil.StartOfDay(now)
	if s := strings.TrimSpace(cmd.Day); s != "" {
		parsed, err := timeutil.ParseDate(s)
		if err != nil {
			return nil, shared.NewValidationError("day", "must be a date in YYYY-MM-DD format")
		}
		if parsed.After(day) {
			return nil, shared.NewValidationError("day", "cannot close a day in the future")
		}
		day = parsed
	}
	label := timeutil.FormatDate(day)
	boundary := timeutil.EndOfDay(day)

	var result *CloseDayResult
	err := h.deps.atomically(ctx, []string{dayClosingLockKey}, func(ctx context.Context) error {
		now := h.deps.now()

		floating, err := h.deps.Ledger.FloatingUntilForUpdate(ctx, boundary)
		if err != nil {
			return fmt.Errorf("close_day: load floating entries: %w", err)
		}

		if len(floating) == 0 {
			last, err := h.deps.Ledger.LastClosing(ctx, label)
			switch {
			case err == nil:
				result = &CloseDayResult{
					ClosingID:     last.ID,
					Day:           label,
					Income:        decimal.Zero,
					Expense:       decimal.Zero,
					AlreadyClosed: true,
				}
				return nil
			case !shared.IsNotFound(err):
				return fmt.Errorf("close_day: load last closing: %w", err)
			}
		}

		verified, income, expense := ledger.CloseBatch(floating, boundary, cmd.Caller.UserID, now)
		n, err := h.deps.Ledger.MarkVerified(ctx, verified)
		if err != nil {
			return fmt.Errorf("close_day: verify entries: %w", err)
		}
		if n != len(verified) {
			return fmt.Errorf("close_day: %d of %d entries changed concurrently: %w",
				len(verified)-n, len(verified), shared.ErrConcurrentModification)
		}

		closing := &ledger.DayClosing{
			ID:           h.deps.IDs.NewID(),
			Day:          label,
			Boundary:     boundary,
			ClosedBy:     cmd.Caller.UserID,
			ClosedAt:     now,
			Transitioned: len(verified),
			Income:       income,
			Expense:      expense,
		}
		if err := h.deps.Ledger.SaveClosing(ctx, closing); err != nil {
			return fmt.Errorf("close_day: save closing: %w", err)
		}

		result = &CloseDayResult{
			ClosingID:    closing.ID,
			Day:          label,
			Transitioned: closing.Transitioned,
			Income:       income,
			Expense:      expense,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyClosed {
		h.deps.log().Info("day already closed", logger.String("day", label))
		return result, nil
	}

	h.deps.publish("close_day",
		shared.NewDayClosedEvent(result.ClosingID, label, cmd.Caller.UserID, result.Transitioned))
	h.deps.log().Info("day closed",
		logger.String("day", label),
		logger.Int("transitioned", result.Transitioned),
		logger.Money("income", result.Income),
		logger.Money("expense", result.Expense),
	)
	return result, nil
}
