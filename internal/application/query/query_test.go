package query_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/application/query"
	"github.com/alem-hub/academy-finance/internal/domain/enrollment"
	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/payroll"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/academy-finance/pkg/timeutil"
)

var owner = shared.Caller{UserID: "u-saud", Role: shared.RoleOwner}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
func dp(v int64) *decimal.Decimal {
	x := decimal.NewFromInt(v)
	return &x
}

type env struct {
	ctx      context.Context
	db       *memory.DB
	now      time.Time
	payroll  *query.GetTeacherPayrollHandler
	overview *query.GetFinanceOverviewHandler
}

// newEnv seeds one Physics teacher with 50000 collected across two classes.
func newEnv(t *testing.T) *env {
	t.Helper()
	now := timeutil.Date(2026, 5, 10).Add(9 * time.Hour)
	clock := timeutil.FixedClock(now)
	db := memory.New()

	db.AddClasses(
		enrollment.Class{ID: "c1", Name: "XI-A", Subjects: []enrollment.Subject{{Name: "physics"}, {Name: "Math"}}},
		enrollment.Class{ID: "c2", Name: "XII-A", Subjects: []enrollment.Subject{{Name: " Physics "}}},
		enrollment.Class{ID: "c3", Name: "IX-B", Subjects: []enrollment.Subject{{Name: "Biology"}}},
	)
	db.AddStudents(
		enrollment.Student{ID: "s1", ClassID: "c1", PaidAmount: d(30000), TotalFee: d(40000)},
		enrollment.Student{ID: "s2", ClassID: "c2", PaidAmount: d(20000), TotalFee: d(40000)},
		enrollment.Student{ID: "s3", ClassID: "c3", PaidAmount: d(50000), TotalFee: d(80000)},
	)
	db.AddTeachers(
		&payroll.Teacher{ID: "t1", Name: "Amina", Subject: "Physics", Status: payroll.TeacherActive,
			Compensation: payroll.Compensation{Type: payroll.CompensationPercentage, TeacherShare: dp(70)}},
		&payroll.Teacher{ID: "t2", Name: "Bilal", Subject: "Chemistry", Status: payroll.TeacherActive,
			Compensation: payroll.Compensation{Type: payroll.CompensationHybrid, BaseSalary: dp(8000), ProfitShare: dp(10)}},
		&payroll.Teacher{ID: "t3", Name: "Old", Subject: "Biology", Status: payroll.TeacherInactive,
			Compensation: payroll.Compensation{Type: payroll.CompensationFixed, FixedSalary: dp(99999)}},
	)

	svc := settings.NewService(memory.NewSettingsRepository(db), clock)
	ph := query.NewGetTeacherPayrollHandler(
		memory.NewTeacherRepository(db), memory.NewPaymentRepository(db), memory.NewEnrollmentReader(db), svc, clock)
	oh := query.NewGetFinanceOverviewHandler(
		ph, memory.NewEnrollmentReader(db), memory.NewExpenseRepository(db), memory.NewPartnerRepository(db), memory.NewLedgerRepository(db))

	return &env{ctx: context.Background(), db: db, now: now, payroll: ph, overview: oh}
}

func (e *env) pay(t *testing.T, teacherID string, amount int64, period shared.Period) {
	t.Helper()
	p, err := payroll.NewTeacherPayment(fmt.Sprintf("pay-%s-%d-%02d", teacherID, period.Year, period.Month), teacherID, period, e.now)
	require.NoError(t, err)
	require.NoError(t, p.AddPayout(d(amount), "u-saud", e.now))
	require.NoError(t, memory.NewPaymentRepository(e.db).Save(e.ctx, p))
}

func lineFor(t *testing.T, res *query.TeacherPayrollResult, id string) payroll.Line {
	t.Helper()
	for _, l := range res.Lines {
		if l.TeacherID == id {
			return l
		}
	}
	t.Fatalf("no payroll line for %s", id)
	return payroll.Line{}
}

func TestTeacherPayrollDeductsThisMonthOnly(t *testing.T) {
	e := newEnv(t)

	res, err := e.payroll.Handle(e.ctx, query.GetTeacherPayrollQuery{Caller: owner})
	require.NoError(t, err)
	require.Len(t, res.Lines, 2, "inactive teachers are skipped")

	amina := lineFor(t, res, "t1")
	assert.True(t, amina.Revenue.Equal(d(50000)))
	assert.True(t, amina.EarnedAmount.Equal(d(35000)))
	assert.Equal(t, 2, amina.ClassesCount)

	bilal := lineFor(t, res, "t2")
	assert.Zero(t, bilal.ClassesCount)
	assert.True(t, bilal.EarnedAmount.Equal(d(8000)), "no classes leaves only the base salary")

	e.pay(t, "t1", 10000, shared.Period{Month: 5, Year: 2026})
	e.pay(t, "t1", 7000, shared.Period{Month: 4, Year: 2026})

	res, err = e.payroll.Handle(e.ctx, query.GetTeacherPayrollQuery{Caller: owner})
	require.NoError(t, err)
	assert.True(t, lineFor(t, res, "t1").EarnedAmount.Equal(d(25000)))
	assert.True(t, res.TotalLiabilities.Equal(d(33000)))
	assert.True(t, res.TotalTeacherPayouts.Equal(d(10000)))
}

func TestTeacherPayrollNeverNegative(t *testing.T) {
	e := newEnv(t)
	e.pay(t, "t2", 50000, shared.Period{Month: 5, Year: 2026})

	res, err := e.payroll.Handle(e.ctx, query.GetTeacherPayrollQuery{Caller: owner})
	require.NoError(t, err)
	assert.True(t, lineFor(t, res, "t2").EarnedAmount.IsZero())
}

func TestTeacherPayrollRoleGate(t *testing.T) {
	e := newEnv(t)
	_, err := e.payroll.Handle(e.ctx, query.GetTeacherPayrollQuery{Caller: shared.Caller{UserID: "x", Role: shared.RoleStaff}})
	assert.True(t, shared.IsForbidden(err))
}

func TestFinanceOverviewComposesPersistedState(t *testing.T) {
	e := newEnv(t)
	e.pay(t, "t1", 10000, shared.Period{Month: 5, Year: 2026})

	exp, err := expense.NewExpense(expense.NewExpenseParams{
		ID: "e1", Title: "Rent", Category: "rent", Amount: d(15000), ExpenseDate: e.now,
	}, e.now)
	require.NoError(t, err)
	require.NoError(t, memory.NewExpenseRepository(e.db).Create(e.ctx, exp))

	p, err := partner.NewPartner("u-zahid", "Zahid", shared.RolePartner, e.now)
	require.NoError(t, err)
	require.NoError(t, p.AddShareDebt(d(4500), e.now))
	require.NoError(t, memory.NewPartnerRepository(e.db).Save(e.ctx, p))

	cash, err := ledger.NewFloating(ledger.Entry{
		ID: "tx1", Type: ledger.TypeIncome, Category: "tuition", Amount: d(1200), CollectedBy: "u-desk",
	}, e.now)
	require.NoError(t, err)
	require.NoError(t, memory.NewLedgerRepository(e.db).Append(e.ctx, cash))

	first, err := e.overview.Handle(e.ctx, query.GetFinanceOverviewQuery{Caller: owner})
	require.NoError(t, err)

	assert.True(t, first.TotalIncome.Equal(d(100000)))
	assert.True(t, first.TotalExpected.Equal(d(160000)))
	assert.True(t, first.TotalPending.Equal(d(60000)))
	assert.True(t, first.TotalExpenses.Equal(d(15000)))
	assert.True(t, first.TotalTeacherPayouts.Equal(d(10000)))
	assert.True(t, first.TotalTeacherLiabilities.Equal(d(33000)), "25000 + 8000")
	assert.True(t, first.NetProfit.Equal(d(42000)))
	assert.Equal(t, int64(63), first.CollectionRate)
	assert.True(t, first.TotalPartnerDebt.Equal(d(4500)))
	assert.True(t, first.FloatingCash.Equal(d(1200)))

	second, err := e.overview.Handle(e.ctx, query.GetFinanceOverviewQuery{Caller: owner})
	require.NoError(t, err)
	assert.Equal(t, first, second, "recomputed from the same state")
}

func TestListTransactionsValidatesFilter(t *testing.T) {
	e := newEnv(t)
	h := query.NewListTransactionsHandler(memory.NewLedgerRepository(e.db))

	_, err := h.Handle(e.ctx, query.ListTransactionsQuery{Status: "PENDING", Caller: owner})
	assert.Contains(t, shared.FieldErrors(err), "status")

	txs, err := h.Handle(e.ctx, query.ListTransactionsQuery{Status: "FLOATING", Caller: owner})
	require.NoError(t, err)
	assert.Empty(t, txs)
}
