package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

func floating(t *testing.T, id string, typ Type, amount int64, date time.Time) *Transaction {
	t.Helper()
	tx, err := NewFloating(Entry{
		ID: id, Type: typ, Category: "fees", Amount: decimal.NewFromInt(amount), Date: date, CollectedBy: "staff-1",
	}, date)
	require.NoError(t, err)
	return tx
}

func TestNewTransactionValidation(t *testing.T) {
	_, err := NewFloating(Entry{ID: "t1", Type: "REFUND", Amount: decimal.Zero}, time.Now())
	require.Error(t, err)
	fields := shared.FieldErrors(err)
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "category")
	assert.Contains(t, fields, "amount")
}

func TestVerifiedEntryIsLockedOnCreation(t *testing.T) {
	tx, err := NewVerified(Entry{
		ID: "t1", Type: TypeExpense, Category: "utilities", Amount: decimal.NewFromInt(10000), CollectedBy: "owner",
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, tx.Status)
	assert.NotNil(t, tx.VerifiedAt)
	assert.ErrorIs(t, tx.Verify("owner", time.Now()), shared.ErrAlreadyVerified)
}

func TestCloseBatchRespectsBoundary(t *testing.T) {
	day := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	boundary := day.Add(12 * time.Hour)

	a := floating(t, "a", TypeIncome, 500, day)
	b := floating(t, "b", TypeExpense, 200, day)
	late := floating(t, "late", TypeIncome, 900, boundary.Add(time.Hour))

	verified, income, expense := CloseBatch([]*Transaction{a, b, late}, boundary, "owner", boundary)
	assert.Len(t, verified, 2)
	assert.True(t, income.Equal(decimal.NewFromInt(500)))
	assert.True(t, expense.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, StatusVerified, a.Status)
	assert.Equal(t, StatusFloating, late.Status)

	again, _, _ := CloseBatch([]*Transaction{a, b}, boundary, "owner", boundary)
	assert.Empty(t, again, "re-closing changes nothing")
}
