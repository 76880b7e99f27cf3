package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
)

func TestKeyedLockerSerializesSameKey(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "partner:u-zahid")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
	assert.Empty(t, l.slots, "idle keys are dropped")
}

func TestKeyedLockerIndependentKeys(t *testing.T) {
	l := NewKeyedLocker()
	ctx := context.Background()

	releaseA, err := l.Acquire(ctx, "partner:a")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := l.Acquire(ctx, "partner:b")
	require.NoError(t, err)
	releaseB()
}

func TestKeyedLockerHonoursContext(t *testing.T) {
	l := NewKeyedLocker()
	release, err := l.Acquire(context.Background(), "ledger:day-closing")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "ledger:day-closing")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrLockNotAcquired)
	assert.True(t, shared.IsRetryable(err))

	release()
	release()

	again, err := l.Acquire(context.Background(), "ledger:day-closing")
	require.NoError(t, err)
	again()
}
