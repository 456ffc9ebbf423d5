package resilience

import (
	"context"
	"time"
)

// WithTimeout races op against a timer and returns TimeoutError if the
// budget elapses first. The operation is abandoned, not cancelled: no
// cooperative cancellation is assumed, so an abandoned call may still
// complete and mutate state after the caller has given up. Operations
// wrapped this way must be idempotent.
func WithTimeout(ctx context.Context, name string, budget time.Duration, op func(ctx context.Context) error) error {
	if budget <= 0 {
		return op(ctx)
	}

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return &TimeoutError{Op: name, After: budget}
	case <-ctx.Done():
		return ctx.Err()
	}
}
