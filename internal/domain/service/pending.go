package service

import (
	"sync"
	"sync/atomic"
)

// PendingCounter is a fan-in barrier over a batch of independent asynchronous operations.
// Done must be called exactly once per issued operation, including on the error path.
// The completion runs exactly once, on the goroutine that makes the final Done call.
type PendingCounter struct {
	remaining atomic.Int64
	once      sync.Once
	onDrained func()
}

// NewPendingCounter creates a counter for n operations.
// With n <= 0 the completion runs immediately on the caller's goroutine.
func NewPendingCounter(n int, onDrained func()) *PendingCounter {
	c := &PendingCounter{onDrained: onDrained}
	c.remaining.Store(int64(n))
	if n <= 0 {
		c.fire()
	}
	return c
}

// Done marks one operation as finished and reports whether it was the last one.
// Calls beyond the batch size are ignored.
func (c *PendingCounter) Done() bool {
	left := c.remaining.Add(-1)
	if left == 0 {
		c.fire()
		return true
	}
	return false
}

// Remaining returns the number of operations still outstanding
func (c *PendingCounter) Remaining() int {
	n := c.remaining.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

func (c *PendingCounter) fire() {
	c.once.Do(func() {
		if c.onDrained != nil {
			c.onDrained()
		}
	})
}
