package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slovo-lang/slovo/internal/logging"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(Config{FailureThreshold: 2, RecoveryTimeout: time.Minute}, logging.NewNop())
	t.Cleanup(m.Shutdown)
	return m
}

func TestManagerLazyBreakerConstruction(t *testing.T) {
	m := newTestManager(t)

	a := m.Breaker("module-a")
	require.NotNil(t, a)
	assert.Same(t, a, m.Breaker("module-a"))
	assert.NotSame(t, a, m.Breaker("module-b"))
	assert.Equal(t, "module-a", a.Name())
}

func TestManagerExecuteDelegates(t *testing.T) {
	m := newTestManager(t)

	result, err := m.Execute("key", func() (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, result)

	_, _ = m.Execute("key", failing)
	_, _ = m.Execute("key", failing)
	assert.Equal(t, StateOpen, m.Breaker("key").State())
}

func TestManagerAllStatus(t *testing.T) {
	m := newTestManager(t)
	_, _ = m.Execute("a", succeeding)
	_, _ = m.Execute("b", failing)

	status := m.AllStatus()
	require.Len(t, status, 2)
	assert.Equal(t, "closed", status["a"].State)
	assert.Equal(t, 1, status["b"].FailureCount)
}

func TestManagerShutdownEmptiesRegistry(t *testing.T) {
	m := NewManager(Config{}, logging.NewNop())
	m.Breaker("a")
	m.Breaker("b")

	m.Shutdown()
	m.Shutdown() // idempotent

	assert.Empty(t, m.AllStatus())
	assert.Equal(t, 0, m.ActiveTimerCount())

	// Breakers handed out after shutdown fail fast and never schedule timers.
	_, err := m.ExecuteWithRetry("c", succeeding, DefaultRetryConfig())
	assert.True(t, errors.Is(err, ErrShuttingDown))
	assert.Equal(t, 0, m.ActiveTimerCount())
}

func TestManagerRemoveWithoutShutdownIsCallerResponsibility(t *testing.T) {
	m := newTestManager(t)
	b := m.Breaker("orphan")

	// Remove drops the breaker without shutting it down. Its timers keep
	// firing outside the registry's view; the caller owns that hazard.
	m.Remove("orphan")
	assert.Empty(t, m.AllStatus())
	assert.Equal(t, 0, m.ActiveTimerCount())

	_, err := b.Execute(succeeding)
	assert.NoError(t, err)

	b.Shutdown()
}

func TestManagerOverallHealth(t *testing.T) {
	m := newTestManager(t)
	_, _ = m.Execute("good", succeeding)

	health := m.OverallHealth()
	assert.Equal(t, 1, health.TotalBreakers)
	assert.True(t, health.Healthy)

	m.Breaker("bad").ForceOpen(time.Minute)
	health = m.OverallHealth()
	assert.Equal(t, 2, health.TotalBreakers)
	assert.False(t, health.Healthy)
}

func TestManagerActiveTimerCountTracksPendingRetries(t *testing.T) {
	m := NewManager(Config{FailureThreshold: 100}, logging.NewNop())
	defer m.Shutdown()

	done := make(chan struct{})
	go func() {
		_, _ = m.ExecuteWithRetry("slow", failing,
			RetryConfig{MaxRetries: 1, InitialDelay: 10 * time.Second})
		close(done)
	}()

	require.Eventually(t, func() bool {
		return m.ActiveTimerCount() == 1
	}, time.Second, time.Millisecond)

	m.Shutdown()
	<-done
	assert.Equal(t, 0, m.ActiveTimerCount())
}
