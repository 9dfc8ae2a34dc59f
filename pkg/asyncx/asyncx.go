package asyncx

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/logx"
)

// ─── Fire-and-forget ──────────────────────────────────────────────────────────

// Go runs fn in a goroutine. A panic inside fn is recovered and logged under
// name instead of crashing the process.
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logx.WithFields(logx.Fields{
					"task":  name,
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				}).Error("background task panicked")
			}
		}()
		fn()
	}()
}

// ─── Retry ────────────────────────────────────────────────────────────────────

// RetryWithBackoff calls fn up to attempts times with exponential backoff
// starting at initialDelay. The delay doubles after each failed attempt.
// Respects context cancellation between retries.
func RetryWithBackoff(
	ctx context.Context,
	attempts int,
	initialDelay time.Duration,
	fn func(context.Context) error,
) error {
	if attempts <= 0 {
		attempts = 1
	}
	var (
		err   error
		delay = initialDelay
	)
	for i := range attempts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err = fn(ctx); err == nil {
			return nil
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return err
}

// ─── Timeout ──────────────────────────────────────────────────────────────────

// WithTimeout runs fn with a deadline of d.
// Returns context.DeadlineExceeded if fn does not finish in time. A
// non-positive d runs fn under ctx unchanged.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type res struct {
		v   T
		err error
	}

	ch := make(chan res, 1)
	go func() {
		v, err := fn(ctx)
		ch <- res{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
