package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/domain/enrollment"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
func dp(v int64) *decimal.Decimal {
	x := d(v)
	return &x
}

// Two physics classes bring 50000 in collected fees; chemistry is unrelated.
func roster() ([]enrollment.Class, []enrollment.Student) {
	classes := []enrollment.Class{
		{ID: "c1", Name: "Grade 9", Subjects: []enrollment.Subject{{Name: "physics"}, {Name: "Maths"}}},
		{ID: "c2", Name: "Grade 10", Subjects: []enrollment.Subject{{Name: " PHYSICS "}}},
		{ID: "c3", Name: "Grade 11", Subjects: []enrollment.Subject{{Name: "Chemistry"}}},
	}
	students := []enrollment.Student{
		{ID: "s1", ClassID: "c1", PaidAmount: d(20000), TotalFee: d(25000)},
		{ID: "s2", ClassID: "c1", PaidAmount: d(10000), TotalFee: d(25000)},
		{ID: "s3", ClassID: "c2", PaidAmount: d(20000), TotalFee: d(20000)},
		{ID: "s4", ClassID: "c3", PaidAmount: d(40000), TotalFee: d(40000)},
	}
	return classes, students
}

func physicsTeacher(comp Compensation) *Teacher {
	return &Teacher{ID: "t1", Name: "Ayesha", Subject: "Physics", Status: TeacherActive, Compensation: comp}
}

func TestPercentageCompensation(t *testing.T) {
	calc := NewCalculator(settings.DefaultSalaryConfig())
	classes, students := roster()
	teacher := physicsTeacher(Compensation{Type: CompensationPercentage, TeacherShare: dp(70)})

	line, err := calc.Line(teacher, classes, students, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, line.Revenue.Equal(d(50000)))
	assert.True(t, line.EarnedAmount.Equal(d(35000)))
	assert.Equal(t, 2, line.ClassesCount)

	line, err = calc.Line(teacher, classes, students, d(10000))
	require.NoError(t, err)
	assert.True(t, line.EarnedAmount.Equal(d(25000)))
	assert.True(t, line.GrossEarned.Equal(d(35000)))
}

func TestPercentageDefaultsToConfiguredShare(t *testing.T) {
	classes, students := roster()
	teacher := physicsTeacher(Compensation{Type: CompensationPercentage})

	line, err := NewCalculator(settings.SalaryConfig{}).Line(teacher, classes, students, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, line.EarnedAmount.Equal(d(35000)), "falls back to 70%")

	line, err = NewCalculator(settings.SalaryConfig{TeacherSharePct: d(60), AcademySharePct: d(40)}).
		Line(teacher, classes, students, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, line.EarnedAmount.Equal(d(30000)))
}

func TestFixedAndHybrid(t *testing.T) {
	calc := NewCalculator(settings.DefaultSalaryConfig())
	classes, students := roster()

	fixed, err := calc.Line(physicsTeacher(Compensation{Type: CompensationFixed, FixedSalary: dp(18000)}), classes, students, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, fixed.EarnedAmount.Equal(d(18000)))

	hybrid, err := calc.Line(physicsTeacher(Compensation{Type: CompensationHybrid, BaseSalary: dp(10000), ProfitShare: dp(20)}), classes, students, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, hybrid.EarnedAmount.Equal(d(20000)))
}

func TestNoMatchingClassesLeavesOnlyBase(t *testing.T) {
	calc := NewCalculator(settings.DefaultSalaryConfig())
	classes, students := roster()
	teacher := &Teacher{ID: "t2", Subject: "Urdu", Status: TeacherActive,
		Compensation: Compensation{Type: CompensationHybrid, BaseSalary: dp(8000), ProfitShare: dp(50)}}

	line, err := calc.Line(teacher, classes, students, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, line.Revenue.IsZero())
	assert.Equal(t, 0, line.ClassesCount)
	assert.True(t, line.EarnedAmount.Equal(d(8000)))
}

func TestEarnedNeverNegative(t *testing.T) {
	calc := NewCalculator(settings.DefaultSalaryConfig())
	classes, students := roster()
	teacher := physicsTeacher(Compensation{Type: CompensationPercentage, TeacherShare: dp(70)})

	line, err := calc.Line(teacher, classes, students, d(1_000_000))
	require.NoError(t, err)
	assert.True(t, line.EarnedAmount.IsZero())
}

func TestEarnedIsRounded(t *testing.T) {
	calc := NewCalculator(settings.DefaultSalaryConfig())
	classes := []enrollment.Class{{ID: "c1", Subjects: []enrollment.Subject{{Name: "Physics"}}}}
	students := []enrollment.Student{{ClassID: "c1", PaidAmount: d(1001)}}

	line, err := calc.Line(physicsTeacher(Compensation{Type: CompensationPercentage, TeacherShare: dp(70)}), classes, students, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, line.EarnedAmount.Equal(d(701)), "700.7 rounds to 701")
}

func TestPayrollSkipsInactiveAndInvalid(t *testing.T) {
	calc := NewCalculator(settings.DefaultSalaryConfig())
	classes, students := roster()
	teachers := []*Teacher{
		physicsTeacher(Compensation{Type: CompensationPercentage, TeacherShare: dp(70)}),
		{ID: "t2", Subject: "Chemistry", Status: TeacherInactive, Compensation: Compensation{Type: CompensationFixed, FixedSalary: dp(5000)}},
		{ID: "t3", Subject: "Chemistry", Status: TeacherActive, Compensation: Compensation{Type: "commission"}},
	}

	sheet := calc.Payroll(teachers, classes, students, map[string]decimal.Decimal{"t1": d(10000)})
	require.Len(t, sheet.Lines, 1)
	assert.True(t, sheet.TotalLiabilities.Equal(d(25000)))
	assert.Equal(t, []string{"t3"}, sheet.Skipped)

	_, err := calc.Earned(Compensation{Type: "commission"}, d(1))
	assert.ErrorIs(t, err, shared.ErrUnknownCompensationType)
}
