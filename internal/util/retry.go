package util

import (
	"context"
	"errors"
	"time"
)

// RetryWithTimeout calls fn up to maxTries times until it returns a nil
// error, or until ctx is done. Context cancellation returned by fn is not
// retried. Every attempt is bounded by timeout; a timeout <= 0 disables the
// per-attempt bound. An attempt that hits
// its own deadline counts as a failed attempt; cancellation of ctx stops
// retrying.
func RetryWithTimeout[T any](
	ctx context.Context,
	maxTries int,
	timeout time.Duration,
	fn func(context.Context) (T, error),
) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		result, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if errors.Is(err, context.Canceled) {
			return zero, err
		}
		if errors.Is(err, context.DeadlineExceeded) && timeout <= 0 {
			return zero, err
		}
		lastErr = err
	}
	return zero, lastErr
}
