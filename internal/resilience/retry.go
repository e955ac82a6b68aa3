package resilience

import (
	"errors"
	"sync"
	"time"
)

// RetryConfig configures ExecuteWithRetry.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// DefaultRetryConfig provides sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      5 * time.Second,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = 2.0
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	return c
}

// retryTimer is the cancellation token for one scheduled retry delay. It is
// registered in the breaker's timer set while pending; stop is safe to call
// from the breaker and from the waiter concurrently.
type retryTimer struct {
	timer  *time.Timer
	cancel chan struct{}
	once   sync.Once
}

func newRetryTimer(d time.Duration) *retryTimer {
	return &retryTimer{
		timer:  time.NewTimer(d),
		cancel: make(chan struct{}),
	}
}

func (t *retryTimer) stop() {
	t.once.Do(func() {
		t.timer.Stop()
		close(t.cancel)
	})
}

// ExecuteWithRetry attempts Execute(op), retrying transient failures with
// exponential backoff until cfg.MaxRetries retries are exhausted. Failures
// marked Permanent, and shutdown rejections, propagate on the first attempt.
// The caller never observes intermediate attempts; exhaustion yields a
// RetriesExhaustedError wrapping the last underlying failure.
func (b *Breaker) ExecuteWithRetry(op func() (any, error), cfg RetryConfig) (any, error) {
	cfg = cfg.withDefaults()
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 0; ; attempt++ {
		result, err := b.Execute(op)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrShuttingDown) {
			return nil, err
		}
		if IsPermanent(err) {
			return nil, err
		}
		lastErr = err

		if attempt >= cfg.MaxRetries {
			return nil, &RetriesExhaustedError{Name: b.name, Attempts: attempt + 1, Last: lastErr}
		}
		if err := b.waitRetry(delay); err != nil {
			return nil, err
		}
		delay = nextDelay(delay, cfg)
	}
}

// waitRetry blocks for the retry delay with a cancellable timer registered in
// the breaker's timer set. A single shutdown check after waking covers both
// races: a timer firing concurrently with cancellation, and a shutdown
// requested while the delay was pending.
func (b *Breaker) waitRetry(d time.Duration) error {
	b.mu.Lock()
	if b.shuttingDown {
		b.mu.Unlock()
		return &ShuttingDownError{Name: b.name}
	}
	t := newRetryTimer(d)
	b.timers[t] = struct{}{}
	b.mu.Unlock()

	select {
	case <-t.timer.C:
	case <-t.cancel:
	}

	b.mu.Lock()
	delete(b.timers, t)
	down := b.shuttingDown
	b.mu.Unlock()

	if down {
		return &ShuttingDownError{Name: b.name}
	}
	return nil
}

func nextDelay(current time.Duration, cfg RetryConfig) time.Duration {
	next := time.Duration(float64(current) * cfg.BackoffFactor)
	if next > cfg.MaxDelay {
		next = cfg.MaxDelay
	}
	return next
}
