package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/domain/enrollment"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

var errUnit = errors.New("unit failed")

func TestRollbackDiscardsUnitWrites(t *testing.T) {
	db := New()
	ctx := context.Background()
	partners := NewPartnerRepository(db)
	now := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)

	err := NewUnitOfWork(db).Do(ctx, func(ctx context.Context) error {
		p, err := partner.NewPartner("u-zahid", "Zahid", shared.RolePartner, now)
		require.NoError(t, err)
		require.NoError(t, partners.Save(ctx, p))
		return errUnit
	})
	assert.ErrorIs(t, err, errUnit)

	_, err = partners.GetByID(ctx, "u-zahid")
	assert.True(t, shared.IsNotFound(err))
}

func TestRollbackKeepsWritesMadeOutsideTheUnit(t *testing.T) {
	db := New()
	ctx := context.Background()
	repo := NewSettingsRepository(db)

	started := make(chan struct{})
	unitDone := make(chan error)
	go func() {
		unitDone <- NewUnitOfWork(db).Do(ctx, func(context.Context) error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			return errUnit
		})
	}()
	<-started

	saved := make(chan error)
	go func() {
		saved <- repo.Save(ctx, settings.NewDefaultConfiguration(time.Now()))
	}()
	go db.AddStudents(enrollment.Student{ID: "s-1"})

	assert.ErrorIs(t, <-unitDone, errUnit)
	require.NoError(t, <-saved)

	_, err := repo.Get(ctx)
	assert.NoError(t, err, "first-boot configuration survives the rollback")

	assert.Eventually(t, func() bool {
		students, err := NewEnrollmentReader(db).ListStudents(ctx)
		return err == nil && len(students) == 1
	}, time.Second, 5*time.Millisecond)
}
