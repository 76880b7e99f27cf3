package command_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/application/command"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/timeutil"
)

func recordIncome(t *testing.T, f *fixture, category string, amount int64) *ledger.Transaction {
	t.Helper()
	tx, err := command.NewRecordIncomeHandler(f.deps).Handle(f.ctx, command.RecordIncomeCommand{
		Category: category, Amount: d(amount), Caller: staff,
	})
	require.NoError(t, err)
	return tx
}

func TestRecordIncomeIsFloating(t *testing.T) {
	f := newFixture(t)
	tx := recordIncome(t, f, "tuition", 5000)

	assert.Equal(t, ledger.StatusFloating, tx.Status)
	assert.Equal(t, ledger.TypeIncome, tx.Type)
	assert.Equal(t, staff.UserID, tx.CollectedBy)
	assert.Equal(t, f.now, tx.Date)

	_, err := command.NewRecordIncomeHandler(f.deps).Handle(f.ctx, command.RecordIncomeCommand{
		Category: "tuition", Amount: d(-5), Caller: staff,
	})
	assert.True(t, shared.IsValidation(err))
}

func TestCloseDayVerifiesFloatingEntries(t *testing.T) {
	f := newFixture(t)
	recordIncome(t, f, "tuition", 5000)
	recordIncome(t, f, "admission", 2000)
	f.createExpense(t, "Electricity May", 10000)

	h := command.NewCloseDayHandler(f.deps)
	res, err := h.Handle(f.ctx, command.CloseDayCommand{Caller: zahidC})
	require.NoError(t, err)
	assert.False(t, res.AlreadyClosed)
	assert.Equal(t, 2, res.Transitioned, "the expense entry was verified on creation")
	assert.True(t, res.Income.Equal(d(7000)))
	assert.Equal(t, "2026-05-10", res.Day)

	for _, tx := range f.journal(t) {
		assert.Equal(t, ledger.StatusVerified, tx.Status)
	}
	assert.Contains(t, f.events.types(), shared.EventDayClosed)

	again, err := h.Handle(f.ctx, command.CloseDayCommand{Caller: zahidC})
	require.NoError(t, err)
	assert.True(t, again.AlreadyClosed)
	assert.Zero(t, again.Transitioned)
	assert.Equal(t, res.ClosingID, again.ClosingID)
}

func TestCloseDayIsRoleGated(t *testing.T) {
	f := newFixture(t)
	recordIncome(t, f, "tuition", 5000)

	_, err := command.NewCloseDayHandler(f.deps).Handle(f.ctx, command.CloseDayCommand{Caller: staff})
	assert.True(t, shared.IsForbidden(err))

	txs := f.journal(t)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.StatusFloating, txs[0].Status)
}

func TestCloseDayRejectsBadDays(t *testing.T) {
	f := newFixture(t)
	h := command.NewCloseDayHandler(f.deps)

	_, err := h.Handle(f.ctx, command.CloseDayCommand{Day: "2026-05-11", Caller: owner})
	assert.Contains(t, shared.FieldErrors(err), "day")

	_, err = h.Handle(f.ctx, command.CloseDayCommand{Day: "10/05/2026", Caller: owner})
	assert.True(t, shared.IsValidation(err))
}

func TestCloseEarlierDayLeavesLaterEntriesFloating(t *testing.T) {
	f := newFixture(t)
	recordIncome(t, f, "tuition", 5000)

	res, err := command.NewCloseDayHandler(f.deps).Handle(f.ctx, command.CloseDayCommand{Day: "2026-05-09", Caller: owner})
	require.NoError(t, err)
	assert.Zero(t, res.Transitioned)
	assert.False(t, res.AlreadyClosed, "first closing of a quiet day is recorded")

	txs := f.journal(t)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.StatusFloating, txs[0].Status)
}

func TestCloseDayRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	recordIncome(t, f, "tuition", 5000)
	f.db.FailOn("ledger.MarkVerified", assert.AnError)

	_, err := command.NewCloseDayHandler(f.deps).Handle(f.ctx, command.CloseDayCommand{Caller: owner})
	require.Error(t, err)

	f.db.FailOn("ledger.MarkVerified", nil)
	txs := f.journal(t)
	assert.Equal(t, ledger.StatusFloating, txs[0].Status)

	res, err := command.NewCloseDayHandler(f.deps).Handle(f.ctx, command.CloseDayCommand{Caller: owner})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transitioned)
}

func TestFutureDatedEntriesCannotEscapeClosing(t *testing.T) {
	f := newFixture(t)
	later := f.now.Add(72 * time.Hour)

	_, err := command.NewRecordIncomeHandler(f.deps).Handle(f.ctx, command.RecordIncomeCommand{
		Category: "tuition", Amount: d(5000), Date: &later, Caller: staff,
	})
	assert.Contains(t, shared.FieldErrors(err), "date")

	f.createExpense(t, "Electricity May", 1000)
	_, err = command.NewRecordSettlementHandler(f.deps).Handle(f.ctx, command.RecordSettlementCommand{
		PartnerID: "u-zahid", Amount: d(300), Date: &later, Caller: owner,
	})
	assert.Contains(t, shared.FieldErrors(err), "date")
	assert.True(t, f.partner(t, "u-zahid").ExpenseDebt.Equal(d(300)), "rejected settlement leaves debt untouched")

	lateToday := timeutil.EndOfDay(f.now)
	_, err = command.NewRecordIncomeHandler(f.deps).Handle(f.ctx, command.RecordIncomeCommand{
		Category: "tuition", Amount: d(5000), Date: &lateToday, Caller: staff,
	})
	require.NoError(t, err)

	res, err := command.NewCloseDayHandler(f.deps).Handle(f.ctx, command.CloseDayCommand{Caller: owner})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transitioned)
	for _, tx := range f.journal(t) {
		assert.Equal(t, ledger.StatusVerified, tx.Status)
	}
}
