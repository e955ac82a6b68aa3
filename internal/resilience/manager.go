package resilience

import (
	"sync"

	"go.uber.org/zap"

	"github.com/slovo-lang/slovo/internal/logging"
)

// Manager owns a keyed registry of circuit breakers and their lifecycle.
type Manager struct {
	defaults Config
	log      *logging.Logger

	mu           sync.Mutex
	breakers     map[string]*Breaker
	shuttingDown bool
}

// Health summarizes the registry for readiness reporting.
type Health struct {
	TotalBreakers int  `json:"totalBreakers"`
	Healthy       bool `json:"healthy"`
}

// NewManager creates a manager that lazily constructs breakers with the given
// default configuration.
func NewManager(defaults Config, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{
		defaults: defaults.withDefaults(),
		log:      log,
		breakers: make(map[string]*Breaker),
	}
}

// Breaker returns the breaker for key, constructing one on first use.
func (m *Manager) Breaker(key string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[key]; ok {
		return b
	}
	b := NewBreaker(key, m.defaults, m.log)
	if m.shuttingDown {
		// A breaker requested after manager shutdown fails fast and never
		// schedules timers.
		b.Shutdown()
	}
	m.breakers[key] = b
	return b
}

// Execute delegates to the breaker for key.
func (m *Manager) Execute(key string, op func() (any, error)) (any, error) {
	return m.Breaker(key).Execute(op)
}

// ExecuteWithRetry delegates to the breaker for key.
func (m *Manager) ExecuteWithRetry(key string, op func() (any, error), cfg RetryConfig) (any, error) {
	return m.Breaker(key).ExecuteWithRetry(op, cfg)
}

// Remove drops the breaker for key from the registry without shutting it
// down. The caller must shut the breaker down first: any timers it still owns
// keep firing outside the registry's view and ActiveTimerCount stops counting
// them.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakers, key)
}

// Shutdown shuts down every managed breaker and empties the registry.
// Idempotent.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.shuttingDown && len(m.breakers) == 0 {
		m.mu.Unlock()
		return
	}
	m.shuttingDown = true
	drained := make([]*Breaker, 0, len(m.breakers))
	for _, b := range m.breakers {
		drained = append(drained, b)
	}
	m.breakers = make(map[string]*Breaker)
	m.mu.Unlock()

	for _, b := range drained {
		b.Shutdown()
	}
	m.log.Info("circuit breaker manager shut down", zap.Int("breakers", len(drained)))
}

// AllStatus returns a snapshot per registered breaker.
func (m *Manager) AllStatus() map[string]Status {
	m.mu.Lock()
	keyed := make(map[string]*Breaker, len(m.breakers))
	for key, b := range m.breakers {
		keyed[key] = b
	}
	m.mu.Unlock()

	out := make(map[string]Status, len(keyed))
	for key, b := range keyed {
		out[key] = b.Snapshot()
	}
	return out
}

// ActiveTimerCount sums pending retry timers across registered breakers.
func (m *Manager) ActiveTimerCount() int {
	m.mu.Lock()
	keyed := make([]*Breaker, 0, len(m.breakers))
	for _, b := range m.breakers {
		keyed = append(keyed, b)
	}
	m.mu.Unlock()

	total := 0
	for _, b := range keyed {
		total += b.ActiveTimers()
	}
	return total
}

// OverallHealth reports healthy iff no registered breaker is open.
func (m *Manager) OverallHealth() Health {
	status := m.AllStatus()
	health := Health{TotalBreakers: len(status), Healthy: true}
	for _, s := range status {
		if s.State == StateOpen.String() {
			health.Healthy = false
		}
	}
	return health
}
