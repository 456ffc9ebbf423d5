package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures exponential backoff.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy is tuned for calls to the platform's downstream
// integrations.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Delay computes the backoff before retrying the given 0-indexed
// attempt: min(initial * multiplier^attempt + jitter(0-30%), max).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt))
	d += d * 0.3 * rand.Float64()
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Retry runs op until it succeeds, returns a non-retryable error, or
// exhausts MaxRetries additional attempts; the last error propagates.
// A server-provided Retry-After overrides the computed delay.
func Retry(ctx context.Context, p RetryPolicy, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) || attempt >= p.MaxRetries {
			return lastErr
		}

		delay := p.Delay(attempt)
		if ra, ok := retryAfter(lastErr); ok {
			delay = ra
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
