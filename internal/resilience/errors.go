package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// CircuitOpenError is returned when a call is rejected because the
// breaker for its target is open. It never consumes retry budget.
type CircuitOpenError struct {
	Target string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for target %q", e.Target)
}

// TimeoutError is returned by WithTimeout when the operation did not
// finish within its budget. The operation itself is abandoned, not
// cancelled.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %s", e.Op, e.After)
}

// HTTPError carries a downstream HTTP status so retry classification
// can distinguish throttling and transient upstream failures from
// caller errors. RetryAfter, when set, overrides the computed backoff.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("downstream returned status %d", e.StatusCode)
}

type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// NonRetryable marks err so Retry aborts immediately instead of
// consuming attempts.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsRetryable classifies an error per the retry policy: network resets
// and timeouts plus HTTP 429/502/503/504 are retryable; other 4xx are
// not; an open circuit is never retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var nr *nonRetryableError
	if errors.As(err, &nr) {
		return false
	}

	var co *CircuitOpenError
	if errors.As(err, &co) {
		return false
	}

	var he *HTTPError
	if errors.As(err, &he) {
		switch he.StatusCode {
		case 429, 502, 503, 504:
			return true
		}
		if he.StatusCode >= 400 && he.StatusCode < 500 {
			return false
		}
		return true
	}

	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	return true
}

// retryAfter extracts an explicit server-provided delay, if any.
func retryAfter(err error) (time.Duration, bool) {
	var he *HTTPError
	if errors.As(err, &he) && he.RetryAfter > 0 {
		return he.RetryAfter, true
	}
	return 0, false
}
