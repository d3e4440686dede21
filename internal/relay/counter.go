package relay

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// PlayerCounter is the shared count of authenticated players. Increment and
// Decrement are paired: the login handler increments, the registry
// decrements when it removes an authenticated actor.
type PlayerCounter struct {
	n     atomic.Int64
	gauge prometheus.Gauge
}

// NewPlayerCounter creates a counter mirrored into the given gauge. gauge
// may be nil.
func NewPlayerCounter(gauge prometheus.Gauge) *PlayerCounter {
	return &PlayerCounter{gauge: gauge}
}

// Increment adds one player.
func (c *PlayerCounter) Increment() {
	c.n.Add(1)
	if c.gauge != nil {
		c.gauge.Inc()
	}
}

// Decrement removes one player. Calls without a matching Increment are
// clamped at zero.
func (c *PlayerCounter) Decrement() {
	if c.n.Add(-1) < 0 {
		c.n.Add(1)
		return
	}
	if c.gauge != nil {
		c.gauge.Dec()
	}
}

// Count returns the current player count.
func (c *PlayerCounter) Count() uint32 {
	n := c.n.Load()
	if n < 0 {
		return 0
	}
	return uint32(n)
}
