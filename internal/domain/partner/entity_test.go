package partner

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

func TestNewPartnerRequiresManagementRole(t *testing.T) {
	_, err := NewPartner("u1", "Staff", shared.RoleStaff, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	p, err := NewPartner("u1", "Zahid", shared.RolePartner, time.Now())
	require.NoError(t, err)
	assert.True(t, p.DebtToOwner.IsZero())
}

func TestDebtNeverGoesNegative(t *testing.T) {
	now := time.Now()
	p, err := NewPartner("u1", "Zahid", shared.RolePartner, now)
	require.NoError(t, err)

	require.NoError(t, p.AddShareDebt(decimal.NewFromInt(3000), now))
	assert.True(t, p.ExpenseDebt.Equal(decimal.NewFromInt(3000)))
	assert.True(t, p.DebtToOwner.Equal(decimal.NewFromInt(3000)))

	err = p.ReduceDebt(decimal.NewFromInt(3001), now)
	assert.ErrorIs(t, err, shared.ErrNegativeDebt)
	assert.True(t, p.DebtToOwner.Equal(decimal.NewFromInt(3000)), "balance untouched on failure")

	require.NoError(t, p.ReduceDebt(decimal.NewFromInt(3000), now))
	assert.True(t, p.DebtToOwner.IsZero())
	assert.False(t, p.HasDebt())
	assert.Equal(t, 3, p.Version)
}

func TestAddShareDebtRejectsNegative(t *testing.T) {
	p, _ := NewPartner("u1", "Saud", shared.RoleOwner, time.Now())
	assert.True(t, shared.IsValidation(p.AddShareDebt(decimal.NewFromInt(-1), time.Now())))

	require.NoError(t, p.AddShareDebt(decimal.Zero, time.Now()))
	assert.Equal(t, 1, p.Version, "zero share is a no-op")
}
