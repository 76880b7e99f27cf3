// Package retry re-runs short units of work that lost a race: serialization
// failures, lock contention, concurrent-modification conflicts.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryableError marks an error as safe to retry.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps an error to indicate it should be retried.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable checks if an error was wrapped with Retryable.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Config holds retry configuration.
type Config struct {
	// MaxAttempts counts the first attempt. Default: 3.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt. Default: 20ms.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff. Default: 500ms.
	MaxDelay time.Duration

	// RetryIf decides whether err deserves another attempt.
	// If nil, only RetryableError errors are retried.
	RetryIf func(error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns a Config tuned for database units of work.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   20 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
	}
}

// Option is a functional option for configuring retries.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithBaseDelay sets the initial backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.BaseDelay = d
		}
	}
}

// WithRetryIf sets a custom retry predicate.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.RetryIf = fn }
}

// WithOnRetry sets a callback invoked before each retry.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// Retrier runs operations under a Config.
type Retrier struct {
	config Config
}

// New creates a new Retrier with the given options.
func New(opts ...Option) *Retrier {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Retrier{config: cfg}
}

// Do executes operation until it succeeds, returns a non-retryable error,
// runs out of attempts or ctx is done. The last error is returned unwrapped
// from RetryableError.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = unwrapRetryable(err)

		if !r.shouldRetry(err) || attempt == r.config.MaxAttempts {
			return lastErr
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, lastErr, delay)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}

	return lastErr
}

func (r *Retrier) shouldRetry(err error) bool {
	if r.config.RetryIf != nil {
		return r.config.RetryIf(err)
	}
	return IsRetryable(err)
}

// delay is BaseDelay·2^(attempt-1), capped, with up to 50% jitter.
func (r *Retrier) delay(attempt int) time.Duration {
	if r.config.BaseDelay <= 0 {
		return 0
	}
	d := r.config.BaseDelay << (attempt - 1)
	if d > r.config.MaxDelay || d <= 0 {
		d = r.config.MaxDelay
	}
	half := int64(d) / 2
	if half == 0 {
		return d
	}
	return time.Duration(half + rand.Int64N(half+1))
}

func unwrapRetryable(err error) error {
	var re *RetryableError
	if errors.As(err, &re) && re == err {
		return re.Err
	}
	return err
}

// Do is a convenience function that creates a Retrier and executes the operation.
func Do(ctx context.Context, operation func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, operation)
}

// DoWithData is a helper for operations that return data.
func DoWithData[T any](ctx context.Context, operation func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var result T
	err := New(opts...).Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = operation(ctx)
		return opErr
	})
	return result, err
}
