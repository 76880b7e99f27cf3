package command_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/application/command"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/academy-finance/internal/infrastructure/service"
	"github.com/alem-hub/academy-finance/pkg/timeutil"
)

var (
	owner  = shared.Caller{UserID: "u-saud", Name: "Saud", Role: shared.RoleOwner}
	zahidC = shared.Caller{UserID: "u-zahid", Name: "Zahid", Role: shared.RolePartner}
	staff  = shared.Caller{UserID: "u-staff", Name: "Desk", Role: shared.RoleStaff}
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

type fixture struct {
	ctx    context.Context
	db     *memory.DB
	deps   command.Deps
	events *recorder
	now    time.Time
}

// newFixture seeds the three legacy partners and resolves the legacy split to them.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := timeutil.Date(2026, 5, 10).Add(10 * time.Hour)
	clock := timeutil.FixedClock(now)
	db := memory.New()
	rec := &recorder{}

	f := &fixture{
		ctx:    context.Background(),
		db:     db,
		events: rec,
		now:    now,
		deps: command.Deps{
			UoW:         memory.NewUnitOfWork(db),
			Locker:      service.NewKeyedLocker(),
			IDs:         service.NewIDGenerator(),
			Publisher:   rec,
			Settings:    settings.NewService(memory.NewSettingsRepository(db), clock),
			Partners:    memory.NewPartnerRepository(db),
			Expenses:    memory.NewExpenseRepository(db),
			Settlements: memory.NewSettlementRepository(db),
			Ledger:      memory.NewLedgerRepository(db),
			Teachers:    memory.NewTeacherRepository(db),
			Payments:    memory.NewPaymentRepository(db),
			Clock:       clock,
		},
	}

	for _, p := range []struct {
		id, name string
		role     shared.Role
	}{
		{"u-waqar", "Waqar", shared.RolePartner},
		{"u-zahid", "Zahid", shared.RolePartner},
		{"u-saud", "Saud", shared.RoleOwner},
	} {
		np, err := partner.NewPartner(p.id, p.name, p.role, now)
		require.NoError(t, err)
		require.NoError(t, f.deps.Partners.Save(f.ctx, np))
	}

	_, err := f.deps.Settings.ReplaceLegacy(f.ctx, settings.LegacySplit{
		PartnerIDs: map[string]string{
			settings.KeyWaqar: "u-waqar",
			settings.KeyZahid: "u-zahid",
			settings.KeySaud:  "u-saud",
		},
	}, owner.UserID)
	require.NoError(t, err)
	return f
}

func (f *fixture) partner(t *testing.T, id string) *partner.Partner {
	t.Helper()
	p, err := f.deps.Partners.GetByID(f.ctx, id)
	require.NoError(t, err)
	return p
}

func (f *fixture) journal(t *testing.T) []*ledger.Transaction {
	t.Helper()
	txs, err := f.deps.Ledger.List(f.ctx, ledger.Filter{})
	require.NoError(t, err)
	return txs
}

func (f *fixture) createExpense(t *testing.T, title string, amount int64) *command.CreateExpenseResult {
	t.Helper()
	res, err := command.NewCreateExpenseHandler(f.deps).Handle(f.ctx, f.expenseCmd(title, amount))
	require.NoError(t, err)
	return res
}

func (f *fixture) expenseCmd(title string, amount int64) command.CreateExpenseCommand {
	return command.CreateExpenseCommand{
		Title:       title,
		Category:    "utilities",
		Amount:      d(amount),
		VendorName:  "K-Electric",
		ExpenseDate: f.now,
		Caller:      owner,
	}
}
