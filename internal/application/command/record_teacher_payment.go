package command

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/application/validation"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/payroll"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD TEACHER PAYMENT COMMAND
// Adds a payout to the teacher's record for a month and books it in the journal.
// ══════════════════════════════════════════════════════════════════════════════

// RecordTeacherPaymentCommand contains the payout data.
type RecordTeacherPaymentCommand struct {
	TeacherID string          `json:"teacherId" validate:"notblank"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`

	// Month and Year default to the current month.
	Month int `json:"month" validate:"omitempty,min=1,max=12"`
	Year  int `json:"year" validate:"omitempty,min=2000"`

	Caller shared.Caller `json:"-"`
}

// Validate validates the command.
func (c RecordTeacherPaymentCommand) Validate() error {
	return validation.Struct(c)
}

// RecordTeacherPaymentResult contains the updated payment record.
type RecordTeacherPaymentResult struct {
	Payment       *payroll.TeacherPayment
	Teacher       *payroll.Teacher
	TransactionID string
}

// RecordTeacherPaymentHandler handles the RecordTeacherPaymentCommand.
type RecordTeacherPaymentHandler struct {
	deps Deps
}

// NewRecordTeacherPaymentHandler creates a new handler.
func NewRecordTeacherPaymentHandler(deps Deps) *RecordTeacherPaymentHandler {
	return &RecordTeacherPaymentHandler{deps: deps}
}

// Handle executes the command.
func (h *RecordTeacherPaymentHandler) Handle(ctx context.Context, cmd RecordTeacherPaymentCommand) (*RecordTeacherPaymentResult, error) {
	if err := cmd.Caller.Authorize("record_teacher_payment", shared.ManagementRoles...); err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	period := shared.PeriodOf(h.deps.now())
	if cmd.Month != 0 {
		period.Month = cmd.Month
	}
	if cmd.Year != 0 {
		period.Year = cmd.Year
	}

	teacher, err := h.deps.Teachers.GetByID(ctx, cmd.TeacherID)
	if err != nil {
		return nil, err
	}

	var result *RecordTeacherPaymentResult
	err = h.deps.atomically(ctx, []string{teacherLockKey(teacher.ID)}, func(ctx context.Context) error {
		now := h.deps.now()

		payment, err := h.deps.Payments.GetForPeriodForUpdate(ctx, teacher.ID, period)
		switch {
		case shared.IsNotFound(err):
			payment, err = payroll.NewTeacherPayment(h.deps.IDs.NewID(), teacher.ID, period, now)
			if err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("record_teacher_payment: load payment: %w", err)
		}

		if err := payment.AddPayout(cmd.Amount, cmd.Caller.UserID, now); err != nil {
			return err
		}
		if err := h.deps.Payments.Save(ctx, payment); err != nil {
			return fmt.Errorf("record_teacher_payment: save payment: %w", err)
		}

		tx, err := ledger.NewVerified(ledger.Entry{
			ID:          h.deps.IDs.NewID(),
			Type:        ledger.TypeExpense,
			Category:    ledger.CategoryTeacherSalary,
			Amount:      cmd.Amount,
			CollectedBy: cmd.Caller.UserID,
			Reference:   payment.ID,
			Description: fmt.Sprintf("salary %s %02d/%d", teacher.Name, period.Month, period.Year),
		}, now)
		if err != nil {
			return err
		}
		if err := h.deps.Ledger.Append(ctx, tx); err != nil {
			return fmt.Errorf("record_teacher_payment: append journal entry: %w", err)
		}

		result = &RecordTeacherPaymentResult{Payment: payment, Teacher: teacher, TransactionID: tx.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.deps.publish("record_teacher_payment", shared.NewTeacherPaymentRecordedEvent(
		result.Payment.ID, teacher.ID, period.Month, period.Year, cmd.Amount))
	h.deps.log().Info("teacher payment recorded",
		logger.TeacherID(teacher.ID),
		logger.Money("amount", cmd.Amount),
		logger.Money("paid_this_month", result.Payment.AmountPaid),
	)
	return result, nil
}
