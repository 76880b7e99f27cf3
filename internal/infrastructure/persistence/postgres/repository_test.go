package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

var may10 = time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)

func TestOpenSharesAreLockedOldestFirst(t *testing.T) {
	db := newFakeDB()
	conn := newConnection(db)
	repo := NewExpenseRepository(conn)

	db.rows["FROM expense_shares"] = [][]any{
		{"sh-1", "ex-1", "u-zahid", "Zahid", decimal.NewFromInt(30), decimal.NewFromInt(300),
			decimal.NewFromInt(100), "UNPAID", "PARTIAL", may10, nil},
	}

	var shares []*expense.Share
	err := NewUnitOfWork(conn).Do(context.Background(), func(ctx context.Context) error {
		var err error
		shares, err = repo.OpenSharesForUpdate(ctx, "u-zahid")
		return err
	})
	require.NoError(t, err)

	stmt := db.last()
	assert.True(t, stmt.inTx)
	assert.Contains(t, stmt.sql, "partner_id = $1 AND status = 'UNPAID'")
	assert.Contains(t, stmt.sql, "ORDER BY created_at, seq FOR UPDATE")
	assert.Equal(t, []any{"u-zahid"}, stmt.args)

	require.Len(t, shares, 1)
	assert.Equal(t, expense.ShareUnpaid, shares[0].Status)
	assert.Equal(t, expense.RepaymentPartial, shares[0].RepaymentStatus)
	assert.True(t, shares[0].Outstanding().Equal(decimal.NewFromInt(200)))
	assert.Nil(t, shares[0].SettledAt)

	_, err = repo.OpenShares(context.Background(), "u-zahid")
	require.NoError(t, err)
	assert.NotContains(t, db.last().sql, "FOR UPDATE")
}

func TestUpdateSharesReportsMissingRows(t *testing.T) {
	db := newFakeDB()
	repo := NewExpenseRepository(newConnection(db))
	db.tags = []string{"UPDATE 1", "UPDATE 0"}

	err := repo.UpdateShares(context.Background(), []*expense.Share{
		{ID: "sh-1", PaidAmount: decimal.NewFromInt(300), Status: expense.SharePaid, RepaymentStatus: expense.RepaymentSettled},
		{ID: "sh-ghost", PaidAmount: decimal.NewFromInt(10), Status: expense.ShareUnpaid, RepaymentStatus: expense.RepaymentPartial},
	})
	assert.True(t, shared.IsNotFound(err))
	assert.Len(t, db.matching("UPDATE expense_shares"), 2)
}

func TestFloatingSelectionUsesBoundaryAndLocks(t *testing.T) {
	db := newFakeDB()
	repo := NewLedgerRepository(newConnection(db))
	boundary := time.Date(2026, 5, 10, 23, 59, 59, 0, time.UTC)

	_, err := repo.FloatingUntilForUpdate(context.Background(), boundary)
	require.NoError(t, err)

	stmt := db.last()
	assert.Contains(t, stmt.sql, "WHERE status = 'FLOATING' AND date <= $1")
	assert.Contains(t, stmt.sql, "FOR UPDATE")
	assert.Equal(t, []any{boundary}, stmt.args)
}

func TestMarkVerifiedCountsOnlyFloatingRows(t *testing.T) {
	db := newFakeDB()
	repo := NewLedgerRepository(newConnection(db))
	db.tags = []string{"UPDATE 1", "UPDATE 0"}

	verifiedAt := may10
	n, err := repo.MarkVerified(context.Background(), []*ledger.Transaction{
		{ID: "tx-1", Status: ledger.StatusVerified, VerifiedAt: &verifiedAt, VerifiedBy: "u-saud"},
		{ID: "tx-2", Status: ledger.StatusVerified, VerifiedAt: &verifiedAt, VerifiedBy: "u-saud"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "a row verified by a concurrent close is not counted")

	updates := db.matching("UPDATE transactions")
	require.Len(t, updates, 2)
	for _, u := range updates {
		assert.Contains(t, u.sql, "WHERE id = $1 AND status = 'FLOATING'")
	}
	assert.Equal(t, "tx-2", updates[1].args[0])

	n, err = repo.MarkVerified(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, db.matching("UPDATE transactions"), 2, "empty batch sends nothing")
}

func TestLastClosingNotFound(t *testing.T) {
	repo := NewLedgerRepository(newConnection(newFakeDB()))

	_, err := repo.LastClosing(context.Background(), "2026-05-10")
	assert.True(t, shared.IsNotFound(err))
}

func TestPartnerSaveUpsertsBalances(t *testing.T) {
	db := newFakeDB()
	repo := NewPartnerRepository(newConnection(db))

	p, err := partner.NewPartner("u-zahid", "Zahid", shared.RolePartner, may10)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), p))

	stmt := db.last()
	assert.Contains(t, stmt.sql, "ON CONFLICT (id) DO UPDATE SET")
	assert.Contains(t, stmt.sql, "expense_debt = EXCLUDED.expense_debt")
	assert.Contains(t, stmt.sql, "debt_to_owner = EXCLUDED.debt_to_owner")
	assert.Equal(t, "u-zahid", stmt.args[0])
	assert.Equal(t, "PARTNER", stmt.args[2])
}

func TestPartnerLookups(t *testing.T) {
	db := newFakeDB()
	repo := NewPartnerRepository(newConnection(db))

	_, err := repo.GetByID(context.Background(), "u-ghost")
	assert.True(t, shared.IsNotFound(err))

	db.rows["FROM partners"] = [][]any{
		{"u-zahid", "Zahid", "PARTNER", decimal.NewFromInt(300), decimal.NewFromInt(300), 4, may10, may10},
	}
	p, err := repo.GetForUpdate(context.Background(), "u-zahid")
	require.NoError(t, err)
	assert.Contains(t, db.last().sql, "WHERE id = $1 FOR UPDATE")
	assert.Equal(t, shared.RolePartner, p.Role)
	assert.Equal(t, 4, p.Version)
	assert.True(t, p.ExpenseDebt.Equal(decimal.NewFromInt(300)))
}

func TestSettingsInitNeverOverwrites(t *testing.T) {
	db := newFakeDB()
	repo := NewSettingsRepository(newConnection(db))
	db.rows["FROM finance_settings"] = [][]any{{[]byte(`{"expenseShares":[]}`), may10, "u-saud"}}

	cfg, err := repo.Init(context.Background(), settings.NewDefaultConfiguration(may10))
	require.NoError(t, err)

	inserts := db.matching("INSERT INTO finance_settings")
	require.Len(t, inserts, 1)
	assert.Contains(t, inserts[0].sql, "ON CONFLICT (id) DO NOTHING")
	assert.NotContains(t, inserts[0].sql, "DO UPDATE")
	assert.Equal(t, "u-saud", cfg.UpdatedBy, "the stored row is returned")
	assert.NotNil(t, cfg.Legacy.PartnerIDs)
}
