package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/academy-finance/internal/domain/shared"
	"github.com/alem-hub/academy-finance/pkg/logger"
)

// Default lock timings.
const (
	DefaultLockTTL  = 30 * time.Second
	DefaultLockPoll = 25 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements command.Locker with SET NX PX. Each holder writes a random
// token so that a lock that expired and was taken by someone else is never
// released by the previous holder.
type Locker struct {
	rdb  redis.UniversalClient
	ttl  time.Duration
	poll time.Duration
	log  *logger.Logger
}

// LockerOption configures Locker.
type LockerOption func(*Locker)

// WithLockTTL sets the expiry of an acquired lock.
func WithLockTTL(ttl time.Duration) LockerOption {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLockPoll sets the wait between acquisition attempts.
func WithLockPoll(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.poll = d
		}
	}
}

// WithLockLogger sets the logger for release failures.
func WithLockLogger(log *logger.Logger) LockerOption {
	return func(l *Locker) {
		if log != nil {
			l.log = log.With(logger.Component("redis-locker"))
		}
	}
}

// NewLocker creates a distributed locker on top of client.
func NewLocker(client *Client, opts ...LockerOption) *Locker {
	l := &Locker{rdb: client.rdb, ttl: DefaultLockTTL, poll: DefaultLockPoll, log: logger.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until key is held or ctx is done.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := LockKey(key)
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, shared.WrapError("lock", "Acquire", shared.ErrLockNotAcquired, "waiting for "+key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) releaser(redisKey, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		deleted, err := releaseScript.Run(ctx, l.rdb, []string{redisKey}, token).Int64()
		switch {
		case err != nil:
			l.log.Warn("failed to release lock, it will expire on its own",
				logger.String("key", redisKey),
				logger.Duration("ttl", l.ttl),
				logger.Err(err),
			)
		case deleted == 0:
			l.log.Warn("lock expired before release",
				logger.String("key", redisKey),
				logger.Duration("ttl", l.ttl),
			)
		}
	}
}
