package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

// DefaultTransitionDelay is how long a loopback session stays in a transitional state
const DefaultTransitionDelay = 300 * time.Millisecond

const eventBuffer = 64

// ErrControllerClosed is returned once the controller has been closed
var ErrControllerClosed = errors.New("session controller closed")

// LoopbackController runs tunnel sessions in process. Sessions move through
// connecting and disconnecting before settling, and every change is pushed on Events.
type LoopbackController struct {
	logger port.Logger
	delay  time.Duration

	mu     sync.Mutex
	status map[string]model.ConnectionStatus
	timers map[string]*time.Timer
	events chan model.StatusEvent
	closed bool
}

// NewLoopbackController creates a new LoopbackController instance
func NewLoopbackController(logger port.Logger, delay time.Duration) *LoopbackController {
	if delay <= 0 {
		delay = DefaultTransitionDelay
	}
	return &LoopbackController{
		logger: logger,
		delay:  delay,
		status: make(map[string]model.ConnectionStatus),
		timers: make(map[string]*time.Timer),
		events: make(chan model.StatusEvent, eventBuffer),
	}
}

// Events returns the status change feed. It is closed by Close.
func (c *LoopbackController) Events() <-chan model.StatusEvent {
	return c.events
}

// Status returns the last status of the named session
func (c *LoopbackController) Status(name string) model.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.status[name]; ok {
		return s
	}
	return model.StatusDisconnected
}

// Start begins connecting the tunnel of def
func (c *LoopbackController) Start(def model.TunnelDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}
	name := def.Name
	if cur := c.status[name]; cur.IsActive() {
		return fmt.Errorf("tunnel %s is already %s", name, cur)
	}
	if def.Payload.Config == "" {
		c.setLocked(name, model.StatusInvalid)
		return fmt.Errorf("tunnel %s has no configuration", name)
	}

	c.setLocked(name, model.StatusConnecting)
	c.after(name, model.StatusConnecting, model.StatusConnected)
	return nil
}

// Stop begins disconnecting the named tunnel. Stopping an idle tunnel is a no-op.
func (c *LoopbackController) Stop(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}
	switch c.status[name] {
	case model.StatusConnecting, model.StatusConnected, model.StatusReasserting:
	default:
		return nil
	}

	c.setLocked(name, model.StatusDisconnecting)
	c.after(name, model.StatusDisconnecting, model.StatusDisconnected)
	return nil
}

// Reset forgets the settled status of an idle session, so it reads disconnected again
func (c *LoopbackController) Reset(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status[name].IsActive() {
		return
	}
	delete(c.status, name)
}

// Close stops pending transitions and closes the event feed
func (c *LoopbackController) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for name, t := range c.timers {
		t.Stop()
		delete(c.timers, name)
	}
	close(c.events)
	return nil
}

// after schedules the move from one transitional status to the settled one,
// replacing any pending transition of the same session
func (c *LoopbackController) after(name string, from, to model.ConnectionStatus) {
	if t, ok := c.timers[name]; ok {
		t.Stop()
	}
	c.timers[name] = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || c.status[name] != from {
			return
		}
		delete(c.timers, name)
		c.setLocked(name, to)
	})
}

func (c *LoopbackController) setLocked(name string, status model.ConnectionStatus) {
	c.status[name] = status
	select {
	case c.events <- model.StatusEvent{Name: name, Status: status}:
	default:
		c.logger.Warn("Status feed full, dropping %s for tunnel %s", status, name)
	}
}

var (
	_ port.SessionController = (*LoopbackController)(nil)
	_ port.StatusSource      = (*LoopbackController)(nil)
)
