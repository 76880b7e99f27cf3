package command_test

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/application/command"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/payroll"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

func TestRecordTeacherPaymentAccumulatesPerMonth(t *testing.T) {
	f := newFixture(t)
	f.db.AddTeachers(&payroll.Teacher{
		ID: "t-1", Name: "Amina", Subject: "Physics", Status: payroll.TeacherActive,
		Compensation: payroll.Compensation{Type: payroll.CompensationPercentage},
	})
	h := command.NewRecordTeacherPaymentHandler(f.deps)

	first, err := h.Handle(f.ctx, command.RecordTeacherPaymentCommand{TeacherID: "t-1", Amount: d(10000), Caller: owner})
	require.NoError(t, err)
	second, err := h.Handle(f.ctx, command.RecordTeacherPaymentCommand{TeacherID: "t-1", Amount: d(5000), Caller: owner})
	require.NoError(t, err)

	assert.Equal(t, first.Payment.ID, second.Payment.ID, "one record per teacher and month")
	assert.True(t, second.Payment.AmountPaid.Equal(d(15000)))
	assert.Equal(t, payroll.PaymentPaid, second.Payment.Status)
	assert.Equal(t, shared.Period{Month: 5, Year: 2026}, second.Payment.Period())

	txs := f.journal(t)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, ledger.CategoryTeacherSalary, tx.Category)
		assert.Equal(t, ledger.TypeExpense, tx.Type)
		assert.Equal(t, ledger.StatusVerified, tx.Status)
	}

	_, err = h.Handle(f.ctx, command.RecordTeacherPaymentCommand{TeacherID: "t-404", Amount: d(1), Caller: owner})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(f.ctx, command.RecordTeacherPaymentCommand{TeacherID: "t-1", Amount: d(1), Month: 13, Caller: owner})
	assert.Contains(t, shared.FieldErrors(err), "month")

	_, err = h.Handle(f.ctx, command.RecordTeacherPaymentCommand{TeacherID: "t-1", Amount: d(1), Caller: staff})
	assert.True(t, shared.IsForbidden(err))
}

func TestUpdateSplitConfig(t *testing.T) {
	f := newFixture(t)
	h := command.NewUpdateSettingsHandler(f.deps)

	cfg, err := h.UpdateSplit(f.ctx, command.UpdateSplitConfigCommand{
		ExpenseShares: []command.ShareInput{
			{PartnerID: "u-waqar", Percentage: d(50)},
			{PartnerID: "u-zahid", Percentage: d(50)},
		},
		Caller: owner,
	})
	require.NoError(t, err)
	assert.Equal(t, settings.ModeDynamic, cfg.SplitMode().Kind())
	assert.Equal(t, "Waqar", cfg.ExpenseShares[0].PartnerName, "names come from partner records")
	assert.Contains(t, f.events.types(), shared.EventSplitConfigUpdated)

	res := f.createExpense(t, "Rent", 10000)
	require.Len(t, res.Expense.Shares, 2)
	assert.True(t, f.partner(t, "u-zahid").DebtToOwner.Equal(d(5000)))
}

func TestUpdateSplitConfigRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	h := command.NewUpdateSettingsHandler(f.deps)

	_, err := h.UpdateSplit(f.ctx, command.UpdateSplitConfigCommand{
		ExpenseShares: []command.ShareInput{{PartnerID: "u-ghost", Percentage: d(100)}},
		Caller:        owner,
	})
	assert.Contains(t, shared.FieldErrors(err), "expenseShares[0].partnerId")

	_, err = h.UpdateSplit(f.ctx, command.UpdateSplitConfigCommand{
		ExpenseShares: []command.ShareInput{
			{PartnerID: "u-waqar", Percentage: d(60)},
			{PartnerID: "u-zahid", Percentage: d(30)},
		},
		Caller: owner,
	})
	assert.True(t, shared.IsValidation(err), "90% in total")

	_, err = h.UpdateSplit(f.ctx, command.UpdateSplitConfigCommand{
		ExpenseSplit: map[string]decimal.Decimal{settings.KeyWaqar: d(50), settings.KeyZahid: d(50), settings.KeySaud: d(0)},
		Caller:       zahidC,
	})
	assert.True(t, shared.IsForbidden(err), "only the owner edits the split")

	cfg, err := f.deps.Settings.Current(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.ModeLegacy, cfg.SplitMode().Kind(), "configuration unchanged")
}

func TestUpdateSalaryConfig(t *testing.T) {
	f := newFixture(t)
	h := command.NewUpdateSettingsHandler(f.deps)

	cfg, err := h.UpdateSalary(f.ctx, command.UpdateSalaryConfigCommand{
		TeacherSharePct: d(60), AcademySharePct: d(40), Caller: owner,
	})
	require.NoError(t, err)
	assert.True(t, cfg.Salary.TeacherSharePct.Equal(d(60)))

	_, err = h.UpdateSalary(f.ctx, command.UpdateSalaryConfigCommand{
		TeacherSharePct: d(60), AcademySharePct: d(60), Caller: owner,
	})
	assert.True(t, shared.IsValidation(err))
}

func TestConcurrentSettingsWritesKeepEachOther(t *testing.T) {
	f := newFixture(t)
	h := command.NewUpdateSettingsHandler(f.deps)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.UpdateSplit(f.ctx, command.UpdateSplitConfigCommand{
				ExpenseShares: []command.ShareInput{
					{PartnerID: "u-waqar", Percentage: d(50)},
					{PartnerID: "u-zahid", Percentage: d(50)},
				},
				Caller: owner,
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := h.UpdateSalary(f.ctx, command.UpdateSalaryConfigCommand{
				TeacherSharePct: d(60), AcademySharePct: d(40), Caller: owner,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cfg, err := f.deps.Settings.Current(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.ModeDynamic, cfg.SplitMode().Kind())
	assert.True(t, cfg.Salary.TeacherSharePct.Equal(d(60)))
}

func TestSyncPartner(t *testing.T) {
	f := newFixture(t)
	h := command.NewSyncPartnerHandler(f.deps)

	res, err := h.Handle(f.ctx, command.SyncPartnerCommand{UserID: "u-omar", Name: "Omar", Role: "PARTNER", Caller: owner})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Partner.DebtToOwner.IsZero())

	f.createExpense(t, "Rent", 10000)
	zahidBefore := f.partner(t, "u-zahid")

	res, err = h.Handle(f.ctx, command.SyncPartnerCommand{UserID: "u-zahid", Name: "Zahid K.", Role: "PARTNER", Caller: owner})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "Zahid K.", f.partner(t, "u-zahid").Name)
	assert.True(t, f.partner(t, "u-zahid").DebtToOwner.Equal(zahidBefore.DebtToOwner), "balances are kept")

	_, err = h.Handle(f.ctx, command.SyncPartnerCommand{UserID: "u-desk", Name: "Desk", Role: "STAFF", Caller: owner})
	assert.ErrorIs(t, err, shared.ErrPartnerNotEnabled)

	_, err = h.Handle(f.ctx, command.SyncPartnerCommand{UserID: "u-x", Name: "X", Role: "ADMIN", Caller: owner})
	assert.Contains(t, shared.FieldErrors(err), "role")
}
