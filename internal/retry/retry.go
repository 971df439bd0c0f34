// Package retry runs an upstream call with a bounded number of attempts and
// a fixed pause between them. A Policy holds no state across calls.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/comigor/evo-go/internal/logger"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 3 * time.Second
)

// Policy describes when and how often an operation is re-attempted.
type Policy struct {
	// MaxAttempts counts the initial call; values below 1 are treated as 1.
	MaxAttempts int
	// Backoff is the flat delay between consecutive attempts.
	Backoff time.Duration
	// AttemptTimeout bounds each individual call when positive.
	AttemptTimeout time.Duration
	// Retryable classifies errors eligible for another attempt. Nil means none are.
	Retryable func(error) bool
	// Timer paces the waits between attempts. Nil uses a real timer.
	Timer backoff.Timer
}

// Default returns the 3 attempts / 3s policy for the given classifier.
func Default(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     DefaultBackoff,
		Retryable:   retryable,
	}
}

// Do calls op until it succeeds, fails with a non-retryable error, or the
// attempts run out. The last error is returned unchanged. Cancelling ctx
// during a wait returns ctx.Err().
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Backoff)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	operation := func() (T, error) {
		attempt++
		val, err := callOnce(ctx, p.AttemptTimeout, op)
		if err != nil && (p.Retryable == nil || !p.Retryable(err)) {
			return val, backoff.Permanent(err)
		}
		return val, err
	}
	notify := func(err error, wait time.Duration) {
		logger.L.Info("retrying upstream call", "attempt", attempt, "max_attempts", attempts, "backoff", wait, "error", err)
	}

	val, err := backoff.RetryNotifyWithTimerAndData(operation, b, notify, p.Timer)
	if err != nil {
		var zero T
		return zero, err
	}
	return val, nil
}

func callOnce[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}
