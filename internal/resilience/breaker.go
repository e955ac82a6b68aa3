package resilience

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/slovo-lang/slovo/internal/logging"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config configures a circuit breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold int
	// RecoveryTimeout is the open period before a half-open trial is permitted.
	RecoveryTimeout time.Duration
	// MonitoringPeriod bounds how long a failure counts toward the threshold.
	// Failures older than this window are aged out of the count.
	MonitoringPeriod time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		MonitoringPeriod: time.Minute,
	}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	if c.MonitoringPeriod <= 0 {
		c.MonitoringPeriod = time.Minute
	}
	return c
}

// Status is a read-only snapshot of a breaker.
type Status struct {
	Name         string    `json:"name"`
	State        string    `json:"state"`
	FailureCount int       `json:"failureCount"`
	OpenedAt     time.Time `json:"openedAt,omitempty"`
	LastFailure  time.Time `json:"lastFailure,omitempty"`
	ActiveTimers int       `json:"activeTimers"`
	ShuttingDown bool      `json:"shuttingDown"`
}

// Breaker implements the circuit breaker pattern for a single key.
type Breaker struct {
	name string
	cfg  Config
	log  *logging.Logger

	mu               sync.Mutex
	state            State
	failureCount     int
	lastFailure      time.Time
	openedAt         time.Time
	recoveryOverride time.Duration
	trialInFlight    bool
	shuttingDown     bool
	timers           map[*retryTimer]struct{}
}

// NewBreaker creates a closed breaker with the given configuration.
func NewBreaker(name string, cfg Config, log *logging.Logger) *Breaker {
	if log == nil {
		log = logging.NewNop()
	}
	return &Breaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		log:    log,
		state:  StateClosed,
		timers: make(map[*retryTimer]struct{}),
	}
}

// Name returns the breaker's key.
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs op if the breaker accepts it. Panics inside op are recovered
// and treated as failures. The operation's own error is propagated unchanged.
func (b *Breaker) Execute(op func() (any, error)) (any, error) {
	if err := b.beforeCall(); err != nil {
		return nil, err
	}
	result, err := runGuarded(op)
	b.afterCall(err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func runGuarded(op func() (any, error)) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op()
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shuttingDown {
		return &ShuttingDownError{Name: b.name}
	}

	now := time.Now()
	b.ageFailures(now)

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		deadline := b.openedAt.Add(b.recoveryTimeout())
		if now.Before(deadline) {
			return &CircuitOpenError{Name: b.name, RetryAfter: deadline.Sub(now)}
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
		return nil
	case StateHalfOpen:
		// Exactly one trial decides whether to close or re-open.
		if b.trialInFlight {
			return &CircuitOpenError{Name: b.name}
		}
		b.trialInFlight = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) afterCall(opErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if opErr == nil {
		switch b.state {
		case StateHalfOpen:
			b.trialInFlight = false
			b.recoveryOverride = 0
			b.transition(StateClosed)
			b.failureCount = 0
		case StateClosed:
			b.failureCount = 0
		}
		return
	}

	b.failureCount++
	b.lastFailure = now
	switch b.state {
	case StateHalfOpen:
		// One failed trial is enough.
		b.trialInFlight = false
		b.openedAt = now
		b.transition(StateOpen)
	case StateClosed:
		if b.failureCount >= b.cfg.FailureThreshold {
			b.openedAt = now
			b.transition(StateOpen)
		}
	}
}

// ageFailures drops the failure window once it is older than the monitoring
// period, so stale failures never trip the breaker. Caller holds b.mu.
func (b *Breaker) ageFailures(now time.Time) {
	if b.state != StateClosed || b.failureCount == 0 {
		return
	}
	if now.Sub(b.lastFailure) > b.cfg.MonitoringPeriod {
		b.failureCount = 0
	}
}

// recoveryTimeout returns the effective open period. Caller holds b.mu.
func (b *Breaker) recoveryTimeout() time.Duration {
	if b.recoveryOverride > 0 {
		return b.recoveryOverride
	}
	return b.cfg.RecoveryTimeout
}

// transition changes state and logs the edge. Caller holds b.mu.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.log.Info("circuit breaker state change",
		zap.String("breaker", b.name),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Int("failure_count", b.failureCount),
	)
}

// ForceOpen opens the breaker for the given duration, bypassing the failure
// counter. Used for operational testing and incident response.
func (b *Breaker) ForceOpen(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	b.openedAt = now
	b.recoveryOverride = d
	b.trialInFlight = false
	b.transition(StateOpen)
}

// Shutdown cancels every pending retry timer and makes all future and
// in-flight operations fail with ShuttingDownError. Idempotent.
func (b *Breaker) Shutdown() {
	b.mu.Lock()
	if b.shuttingDown {
		b.mu.Unlock()
		return
	}
	b.shuttingDown = true
	cancelled := make([]*retryTimer, 0, len(b.timers))
	for t := range b.timers {
		cancelled = append(cancelled, t)
	}
	b.timers = make(map[*retryTimer]struct{})
	b.mu.Unlock()

	for _, t := range cancelled {
		t.stop()
	}
	if len(cancelled) > 0 {
		b.log.Info("circuit breaker shutdown cancelled pending retries",
			zap.String("breaker", b.name),
			zap.Int("timers", len(cancelled)),
		)
	}
}

// State returns the current state without mutating it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ActiveTimers returns the number of pending retry timers.
func (b *Breaker) ActiveTimers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timers)
}

// Snapshot returns a read-only view of the breaker.
func (b *Breaker) Snapshot() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Name:         b.name,
		State:        b.state.String(),
		FailureCount: b.failureCount,
		OpenedAt:     b.openedAt,
		LastFailure:  b.lastFailure,
		ActiveTimers: len(b.timers),
		ShuttingDown: b.shuttingDown,
	}
}
