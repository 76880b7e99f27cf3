package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/internal/domain/enrollment"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

// FallbackTeacherShare применяется, если процент не задан ни у преподавателя, ни в настройках.
var FallbackTeacherShare = decimal.NewFromInt(70)

// ══════════════════════════════════════════════════════════════════════════════
// CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// Calculator считает начисления преподавателям по живой выручке.
type Calculator struct {
	defaultTeacherShare decimal.Decimal
}

// NewCalculator создаёт калькулятор с процентом по умолчанию из настроек зарплат.
func NewCalculator(salary settings.SalaryConfig) Calculator {
	share := salary.TeacherSharePct
	if !share.IsPositive() {
		share = FallbackTeacherShare
	}
	return Calculator{defaultTeacherShare: share}
}

// Line - строка ведомости по одному преподавателю.
type Line struct {
	TeacherID        string           `json:"teacherId"`
	Name             string           `json:"name"`
	Subject          string           `json:"subject"`
	CompensationType CompensationType `json:"compensationType"`
	Revenue          decimal.Decimal  `json:"revenue"`
	GrossEarned      decimal.Decimal  `json:"grossEarned"`
	PaidThisMonth    decimal.Decimal  `json:"paidThisMonth"`
	EarnedAmount     decimal.Decimal  `json:"earnedAmount"`
	ClassesCount     int              `json:"classesCount"`
}

// Sheet - ведомость за текущий месяц.
type Sheet struct {
	Lines            []Line          `json:"lines"`
	TotalLiabilities decimal.Decimal `json:"totalTeacherLiabilities"`
	// Skipped - преподаватели с некорректной схемой оплаты.
	Skipped []string `json:"skipped,omitempty"`
}

// Earned считает начисление до вычета выплат.
func (c Calculator) Earned(comp Compensation, revenue decimal.Decimal) (decimal.Decimal, error) {
	switch comp.Type {
	case CompensationPercentage, "":
		share := c.defaultTeacherShare
		if comp.TeacherShare != nil {
			share = *comp.TeacherShare
		}
		return revenue.Mul(share).Div(shared.Hundred), nil
	case CompensationFixed:
		return valueOrZero(comp.FixedSalary), nil
	case CompensationHybrid:
		base := valueOrZero(comp.BaseSalary)
		return base.Add(revenue.Mul(valueOrZero(comp.ProfitShare)).Div(shared.Hundred)), nil
	default:
		return decimal.Zero, shared.ErrUnknownCompensationType
	}
}

// MatchClasses возвращает классы, где преподаётся предмет преподавателя.
func MatchClasses(subject string, classes []enrollment.Class) []enrollment.Class {
	var out []enrollment.Class
	for _, cl := range classes {
		if cl.Teaches(subject) {
			out = append(out, cl)
		}
	}
	return out
}

// Revenue суммирует оплаты студентов, записанных в указанные классы.
func Revenue(classes []enrollment.Class, students []enrollment.Student) decimal.Decimal {
	ids := make(map[string]struct{}, len(classes))
	for _, cl := range classes {
		ids[cl.ID] = struct{}{}
	}
	total := decimal.Zero
	for _, s := range students {
		if _, ok := ids[s.ClassID]; ok {
			total = total.Add(s.PaidAmount)
		}
	}
	return total
}

// Line считает строку ведомости. Итоговое начисление = round(max(0, начислено - выплачено)).
func (c Calculator) Line(t *Teacher, classes []enrollment.Class, students []enrollment.Student, paidThisMonth decimal.Decimal) (Line, error) {
	matched := MatchClasses(t.Subject, classes)
	revenue := Revenue(matched, students)

	gross, err := c.Earned(t.Compensation, revenue)
	if err != nil {
		return Line{}, err
	}

	compType := t.Compensation.Type
	if compType == "" {
		compType = CompensationPercentage
	}

	return Line{
		TeacherID:        t.ID,
		Name:             t.Name,
		Subject:          t.Subject,
		CompensationType: compType,
		Revenue:          revenue,
		GrossEarned:      shared.RoundMoney(gross),
		PaidThisMonth:    paidThisMonth,
		EarnedAmount:     shared.RoundMoney(shared.MaxZero(gross.Sub(paidThisMonth))),
		ClassesCount:     len(matched),
	}, nil
}

// Payroll строит ведомость по активным преподавателям.
// paid - выплаты текущего месяца по teacherID.
func (c Calculator) Payroll(teachers []*Teacher, classes []enrollment.Class, students []enrollment.Student, paid map[string]decimal.Decimal) Sheet {
	sheet := Sheet{Lines: make([]Line, 0, len(teachers)), TotalLiabilities: decimal.Zero}
	for _, t := range teachers {
		if !t.IsActive() {
			continue
		}
		line, err := c.Line(t, classes, students, paid[t.ID])
		if err != nil {
			sheet.Skipped = append(sheet.Skipped, t.ID)
			continue
		}
		sheet.Lines = append(sheet.Lines, line)
		sheet.TotalLiabilities = sheet.TotalLiabilities.Add(line.EarnedAmount)
	}
	return sheet
}

func valueOrZero(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}
