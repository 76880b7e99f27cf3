package settings

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

func pct(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestSplitModeDynamicWinsWhenNonEmpty(t *testing.T) {
	cfg := NewDefaultConfiguration(time.Now())
	cfg.Legacy.PartnerIDs[KeyWaqar] = "u-waqar"
	cfg.ExpenseShares = []ShareEntry{
		{PartnerID: "p1", PartnerName: "Ali", Percentage: pct(60)},
		{PartnerID: "p2", PartnerName: "Bilal", Percentage: pct(40)},
		{PartnerID: "p3", PartnerName: "Idle", Percentage: pct(0)},
	}

	mode := cfg.SplitMode()
	assert.Equal(t, ModeDynamic, mode.Kind())

	allocs := mode.Allocations()
	require.Len(t, allocs, 2)
	assert.Equal(t, "p1", allocs[0].PartnerID)
	assert.True(t, mode.TotalPercentage().Equal(pct(100)))
}

func TestSplitModeLegacyDefaults(t *testing.T) {
	cfg := NewDefaultConfiguration(time.Now())
	cfg.Legacy.PartnerIDs = map[string]string{
		KeyWaqar: "u-waqar",
		KeyZahid: "u-zahid",
	}

	mode := cfg.SplitMode()
	assert.Equal(t, ModeLegacy, mode.Kind())

	allocs := mode.Allocations()
	require.Len(t, allocs, 3)
	assert.Equal(t, KeyWaqar, allocs[0].Key)
	assert.True(t, allocs[0].Percentage.Equal(pct(40)))
	assert.True(t, allocs[1].Resolved())
	assert.False(t, allocs[2].Resolved(), "saud has no partner id")
}

func TestSplitModeLegacyOverride(t *testing.T) {
	mode := Legacy(LegacySplit{
		Percentages: map[string]decimal.Decimal{KeyWaqar: pct(50), KeyZahid: pct(50), KeySaud: pct(0)},
	})

	allocs := mode.Allocations()
	require.Len(t, allocs, 2)
	assert.True(t, mode.TotalPercentage().Equal(pct(100)))
}

func TestValidateEntries(t *testing.T) {
	ok := []ShareEntry{{PartnerID: "a", Percentage: pct(70)}, {PartnerID: "b", Percentage: pct(30)}}
	assert.NoError(t, ValidateEntries(ok))

	short := []ShareEntry{{PartnerID: "a", Percentage: pct(70)}, {PartnerID: "b", Percentage: pct(20)}}
	err := ValidateEntries(short)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	assert.Contains(t, shared.FieldErrors(err), "expenseShares")

	dup := []ShareEntry{{PartnerID: "a", Percentage: pct(50)}, {PartnerID: "a", Percentage: pct(50)}}
	err = ValidateEntries(dup)
	require.Error(t, err)
	assert.Contains(t, shared.FieldErrors(err), "expenseShares[1].partnerId")

	assert.Error(t, ValidateEntries(nil))
}

func TestValidateLegacy(t *testing.T) {
	assert.NoError(t, ValidateLegacy(LegacySplit{}))

	err := ValidateLegacy(LegacySplit{Percentages: map[string]decimal.Decimal{KeyWaqar: pct(50)}})
	assert.True(t, shared.IsValidation(err), "50/30/30 does not sum to 100")

	err = ValidateLegacy(LegacySplit{PartnerIDs: map[string]string{"omar": "x"}})
	assert.Contains(t, shared.FieldErrors(err), "partnerIds.omar")
}

func TestSalaryConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultSalaryConfig().Validate())
	assert.Error(t, SalaryConfig{TeacherSharePct: pct(80), AcademySharePct: pct(30)}.Validate())
}

type memRepo struct {
	cfg   *Configuration
	saves int
}

func (m *memRepo) Get(ctx context.Context) (*Configuration, error) {
	if m.cfg == nil {
		return nil, shared.ErrSettingsNotFound
	}
	return m.cfg.Clone(), nil
}

func (m *memRepo) Save(ctx context.Context, cfg *Configuration) error {
	m.cfg = cfg.Clone()
	m.saves++
	return nil
}

func (m *memRepo) Init(ctx context.Context, cfg *Configuration) (*Configuration, error) {
	if m.cfg == nil {
		m.cfg = cfg.Clone()
		m.saves++
	}
	return m.cfg.Clone(), nil
}

func TestServiceCreatesDefaultOnFirstRead(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, nil)

	cfg, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeLegacy, cfg.SplitMode().Kind())
	assert.Equal(t, 1, repo.saves)

	_, err = svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.saves)
}

func TestServiceReplaceSharesRejectsBadTable(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo, nil)

	_, err := svc.ReplaceShares(context.Background(), []ShareEntry{{PartnerID: "a", Percentage: pct(99)}}, "owner")
	assert.True(t, shared.IsValidation(err))
	assert.Nil(t, repo.cfg)

	cfg, err := svc.ReplaceShares(context.Background(), []ShareEntry{{PartnerID: "a", Percentage: pct(100)}}, "owner")
	require.NoError(t, err)
	assert.Equal(t, "owner", cfg.UpdatedBy)
	assert.Equal(t, ModeDynamic, cfg.SplitMode().Kind())
}

func TestServiceSeedsConfiguredSalary(t *testing.T) {
	svc := NewService(&memRepo{}, nil, WithDefaultSalary(SalaryConfig{
		TeacherSharePct: pct(60),
		AcademySharePct: pct(40),
	}))

	cfg, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.Salary.TeacherSharePct.Equal(pct(60)))
	assert.True(t, cfg.Salary.AcademySharePct.Equal(pct(40)))
}
