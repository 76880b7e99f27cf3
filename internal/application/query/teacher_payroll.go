// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/enrollment"
	"github.com/alem-hub/academy-finance/internal/domain/payroll"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TEACHER PAYROLL QUERY
// Строит ведомость начислений преподавателям за текущий месяц по живой выручке.
// ══════════════════════════════════════════════════════════════════════════════

// GetTeacherPayrollQuery содержит параметры запроса ведомости.
type GetTeacherPayrollQuery struct {
	Caller shared.Caller
}

// TeacherPayrollResult - ведомость и месяц, за который вычтены выплаты.
type TeacherPayrollResult struct {
	Period shared.Period `json:"period"`
	payroll.Sheet
	TotalTeacherPayouts decimal.Decimal `json:"totalTeacherPayouts"`
}

// GetTeacherPayrollHandler обрабатывает запрос ведомости.
type GetTeacherPayrollHandler struct {
	teachers payroll.TeacherRepository
	payments payroll.PaymentRepository
	roster   enrollment.Reader
	settings settings.Reader
	clock    timeutil.Clock
}

// NewGetTeacherPayrollHandler создаёт обработчик.
func NewGetTeacherPayrollHandler(
	teachers payroll.TeacherRepository,
	payments payroll.PaymentRepository,
	roster enrollment.Reader,
	settingsReader settings.Reader,
	clock timeutil.Clock,
) *GetTeacherPayrollHandler {
	if clock == nil {
		clock = timeutil.Now
	}
	return &GetTeacherPayrollHandler{
		teachers: teachers,
		payments: payments,
		roster:   roster,
		settings: settingsReader,
		clock:    clock,
	}
}

// Handle выполняет запрос. Доступно OWNER и PARTNER.
func (h *GetTeacherPayrollHandler) Handle(ctx context.Context, q GetTeacherPayrollQuery) (*TeacherPayrollResult, error) {
	if err := q.Caller.Authorize("get_teacher_payroll", shared.ManagementRoles...); err != nil {
		return nil, err
	}
	return h.Compute(ctx)
}

// Compute строит ведомость без проверки прав; используется сводкой финансов.
func (h *GetTeacherPayrollHandler) Compute(ctx context.Context) (*TeacherPayrollResult, error) {
	period := shared.PeriodOf(timeutil.Local(h.clock()))

	cfg, err := h.settings.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_teacher_payroll: load configuration: %w", err)
	}
	teachers, err := h.teachers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_teacher_payroll: list teachers: %w", err)
	}
	classes, err := h.roster.ListClasses(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_teacher_payroll: list classes: %w", err)
	}
	students, err := h.roster.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_teacher_payroll: list students: %w", err)
	}
	payments, err := h.payments.ListPaid(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("get_teacher_payroll: list payments: %w", err)
	}

	paid := make(map[string]decimal.Decimal, len(payments))
	payouts := decimal.Zero
	for _, p := range payments {
		paid[p.TeacherID] = paid[p.TeacherID].Add(p.AmountPaid)
		payouts = payouts.Add(p.AmountPaid)
	}

	sheet := payroll.NewCalculator(cfg.Salary).Payroll(teachers, classes, students, paid)
	return &TeacherPayrollResult{Period: period, Sheet: sheet, TotalTeacherPayouts: payouts}, nil
}
