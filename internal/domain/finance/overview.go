// Package finance composes the consolidated profit and loss view. It holds no
// state: every figure is derived from the inputs on each call.
package finance

import (
	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/payroll"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// Inputs are the persisted totals the overview is derived from.
type Inputs struct {
	Period              shared.Period
	TotalIncome         decimal.Decimal
	TotalExpected       decimal.Decimal
	TotalExpenses       decimal.Decimal
	TotalTeacherPayouts decimal.Decimal
	Payroll             payroll.Sheet
	TotalPartnerDebt    decimal.Decimal
	FloatingCash        decimal.Decimal
}

// Overview is the dashboard figure set.
type Overview struct {
	Period                  shared.Period   `json:"period"`
	TotalIncome             decimal.Decimal `json:"totalIncome"`
	TotalExpected           decimal.Decimal `json:"totalExpected"`
	TotalPending            decimal.Decimal `json:"totalPending"`
	TotalExpenses           decimal.Decimal `json:"totalExpenses"`
	TotalTeacherPayouts     decimal.Decimal `json:"totalTeacherPayouts"`
	TotalTeacherLiabilities decimal.Decimal `json:"totalTeacherLiabilities"`
	NetProfit               decimal.Decimal `json:"netProfit"`
	CollectionRate          int64           `json:"collectionRate"`
	TotalPartnerDebt        decimal.Decimal `json:"totalPartnerDebt"`
	FloatingCash            decimal.Decimal `json:"floatingCash"`
	TeacherPayroll          []payroll.Line  `json:"teacherPayroll"`
}

// Compose derives the overview:
//
//	pending        = expected - income
//	netProfit      = income - liabilities - payouts - expenses
//	collectionRate = round(income / expected × 100), 0 when nothing is expected
func Compose(in Inputs) Overview {
	liabilities := in.Payroll.TotalLiabilities
	return Overview{
		Period:                  in.Period,
		TotalIncome:             in.TotalIncome,
		TotalExpected:           in.TotalExpected,
		TotalPending:            in.TotalExpected.Sub(in.TotalIncome),
		TotalExpenses:           in.TotalExpenses,
		TotalTeacherPayouts:     in.TotalTeacherPayouts,
		TotalTeacherLiabilities: liabilities,
		NetProfit:               in.TotalIncome.Sub(liabilities).Sub(in.TotalTeacherPayouts).Sub(in.TotalExpenses),
		CollectionRate:          CollectionRate(in.TotalIncome, in.TotalExpected),
		TotalPartnerDebt:        in.TotalPartnerDebt,
		FloatingCash:            in.FloatingCash,
		TeacherPayroll:          in.Payroll.Lines,
	}
}

// CollectionRate returns round(income / expected × 100), or 0 if expected ≤ 0.
func CollectionRate(income, expected decimal.Decimal) int64 {
	if !expected.IsPositive() {
		return 0
	}
	return income.Mul(shared.Hundred).Div(expected).Round(0).IntPart()
}
