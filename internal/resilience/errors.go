package resilience

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCircuitOpen is matched by errors.Is for fast-fail rejections while open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrShuttingDown is matched by errors.Is for rejections after shutdown.
	ErrShuttingDown = errors.New("circuit breaker is shutting down")
)

// CircuitOpenError rejects an operation without running it because the breaker
// is open (or a half-open trial is already in flight).
type CircuitOpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("circuit breaker %q is open, retry after %s", e.Name, e.RetryAfter)
	}
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// ShuttingDownError rejects an operation because shutdown was requested.
// Shutdown rejections take precedence over every other classification.
type ShuttingDownError struct {
	Name string
}

func (e *ShuttingDownError) Error() string {
	return fmt.Sprintf("circuit breaker %q is shutting down", e.Name)
}

func (e *ShuttingDownError) Unwrap() error { return ErrShuttingDown }

// RetriesExhaustedError wraps the last underlying failure after every retry
// attempt has failed.
type RetriesExhaustedError struct {
	Name     string
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("circuit breaker %q: %d attempts exhausted: %v", e.Name, e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// permanentError marks a failure that must not be retried, such as a
// compilation error or a detected import cycle.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so ExecuteWithRetry propagates it on the first attempt
// instead of scheduling retries. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err (or anything it wraps) was marked Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
