// Package command contains write operations (CQRS - Commands).
// Every money-moving command runs as one atomic unit of work; events are
// published only after that unit commits.
package command

import (
	"context"
	"sort"
	"time"

	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/payroll"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/settlement"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
	"github.com/alem-hub/academy-finance/pkg/retry"
	"github.com/alem-hub/academy-finance/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWork runs fn as one atomic, isolated unit. Repositories called with the
// ctx handed to fn take part in it; any error returned by fn rolls it all back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker serializes work on a key across concurrent callers.
type Locker interface {
	// Acquire blocks until key is held or ctx is done.
	// Returns shared.ErrLockNotAcquired if the lock could not be taken in time.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// IDGenerator produces unique identifiers.
type IDGenerator interface {
	NewID() string
}

// Deps bundles the collaborators shared by command handlers.
type Deps struct {
	UoW       UnitOfWork
	Locker    Locker
	IDs       IDGenerator
	Publisher shared.EventPublisher
	Settings  *settings.Service

	Partners    partner.Repository
	Expenses    expense.Repository
	Settlements settlement.Repository
	Ledger      ledger.Repository
	Teachers    payroll.TeacherRepository
	Payments    payroll.PaymentRepository

	Logger *logger.Logger
	Clock  timeutil.Clock

	// MaxAttempts bounds retries of a unit that lost a race. Default: 3.
	MaxAttempts int
}

func (d Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return timeutil.Now()
}

func (d Deps) log() *logger.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logger.Nop()
}

// Lock key helpers.
func partnerLockKey(id string) string { return "partner:" + id }
func teacherLockKey(id string) string { return "teacher:" + id }

const dayClosingLockKey = "ledger:day-closing"
const settingsLockKey = "settings:configuration"

// floatingDate returns the journal date for a FLOATING entry. Entries dated
// after today would escape every closing up to that day, so they are rejected.
func (d Deps) floatingDate(date *time.Time) (time.Time, error) {
	if date == nil || date.IsZero() {
		return time.Time{}, nil
	}
	if date.After(timeutil.EndOfDay(d.now())) {
		return time.Time{}, shared.NewValidationError("date", "cannot be in the future")
	}
	return *date, nil
}

// atomically holds the locks for keys (in sorted order, so callers never
// deadlock each other) and runs fn inside the unit of work. Units that fail
// with a retryable error are re-run from scratch.
func (d Deps) atomically(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	keys = uniqueSorted(keys)

	attempts := d.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	return retry.Do(ctx, func(ctx context.Context) error {
		var releases []func()
		defer func() {
			for i := len(releases) - 1; i >= 0; i-- {
				releases[i]()
			}
		}()

		if d.Locker != nil {
			for _, k := range keys {
				release, err := d.Locker.Acquire(ctx, k)
				if err != nil {
					return err
				}
				releases = append(releases, release)
			}
		}
		return d.UoW.Do(ctx, fn)
	},
		retry.WithMaxAttempts(attempts),
		retry.WithRetryIf(shared.IsRetryable),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			d.log().Warn("retrying unit of work",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)
}

// publish sends events after commit. Failures are logged and never returned.
func (d Deps) publish(op string, events ...shared.Event) {
	if d.Publisher == nil {
		return
	}
	for _, e := range events {
		if err := d.Publisher.Publish(e); err != nil {
			d.log().Warn("event publish failed",
				logger.Operation(op),
				logger.String("event_type", string(e.EventType())),
				logger.Err(err),
			)
		}
	}
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
