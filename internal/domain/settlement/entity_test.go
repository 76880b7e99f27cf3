package settlement

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func openShare(id string, amount int64) *expense.Share {
	return &expense.Share{
		ID:              id,
		ExpenseID:       "exp-" + id,
		Amount:          d(amount),
		PaidAmount:      decimal.Zero,
		Status:          expense.ShareUnpaid,
		RepaymentStatus: expense.RepaymentPending,
	}
}

func TestAllocateSettlesWholeShare(t *testing.T) {
	s := openShare("s1", 3000)

	res, err := Allocate([]*expense.Share{s}, d(3000), time.Now())
	require.NoError(t, err)
	assert.True(t, res.Applied.Equal(d(3000)))
	assert.Equal(t, expense.SharePaid, s.Status)
	assert.Equal(t, expense.RepaymentSettled, s.RepaymentStatus)
	require.Len(t, res.Allocations, 1)
	assert.True(t, res.Allocations[0].Settled)
}

func TestAllocateIsFIFOWithPartialRemainder(t *testing.T) {
	oldest, middle, newest := openShare("s1", 1000), openShare("s2", 2000), openShare("s3", 4000)

	res, err := Allocate([]*expense.Share{oldest, middle, newest}, d(2500), time.Now())
	require.NoError(t, err)

	assert.True(t, res.Applied.Equal(d(2500)))
	assert.Equal(t, expense.SharePaid, oldest.Status)
	assert.Equal(t, expense.ShareUnpaid, middle.Status)
	assert.Equal(t, expense.RepaymentPartial, middle.RepaymentStatus)
	assert.True(t, middle.Outstanding().Equal(d(500)))
	assert.Equal(t, expense.RepaymentPending, newest.RepaymentStatus, "newest share untouched")
	assert.Len(t, res.Touched, 2)

	newlyPaid := decimal.Zero
	for _, a := range res.Allocations {
		if a.Settled {
			newlyPaid = newlyPaid.Add(d(1000))
		}
	}
	assert.True(t, newlyPaid.LessThanOrEqual(d(2500)))
}

func TestAllocateRejectsOverpayment(t *testing.T) {
	s := openShare("s1", 3000)

	_, err := Allocate([]*expense.Share{s}, d(3001), time.Now())
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	assert.Contains(t, shared.FieldErrors(err), "amount")
	assert.True(t, s.PaidAmount.IsZero(), "shares untouched on rejection")
}

func TestAllocateWithNothingOwed(t *testing.T) {
	_, err := Allocate(nil, d(10), time.Now())
	assert.True(t, shared.IsValidation(err), "paying with nothing owed is an overpayment")

	_, err = Allocate([]*expense.Share{openShare("s1", 10)}, d(0), time.Now())
	assert.True(t, shared.IsValidation(err))
}

func TestNewDefaultsMethodAndDate(t *testing.T) {
	now := time.Now()
	s, err := New(NewSettlementParams{ID: "st-1", PartnerID: "p", Amount: d(10), Notes: "  cash at desk "}, now)
	require.NoError(t, err)
	assert.Equal(t, MethodCash, s.Method)
	assert.Equal(t, now, s.Date)
	assert.Equal(t, "cash at desk", s.Notes)

	_, err = New(NewSettlementParams{Method: "cheque"}, now)
	assert.True(t, shared.IsValidation(err))
}
