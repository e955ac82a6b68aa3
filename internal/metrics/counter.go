package metrics

import "sync/atomic"

// Counter is a monotonically increasing integer. It only decreases on an
// explicit Reset.
type Counter struct {
	value atomic.Uint64
}

// NewCounter creates a zeroed counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Inc adds one.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds n.
func (c *Counter) Add(n uint64) {
	c.value.Add(n)
}

// Value returns the current count.
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

// Reset sets the counter back to zero.
func (c *Counter) Reset() {
	c.value.Store(0)
}
