package port

import "github.com/specht/specht-client/internal/domain/model"

// SessionController starts and stops native tunnel sessions
type SessionController interface {
	// Start begins connecting the named tunnel
	Start(def model.TunnelDefinition) error

	// Stop begins disconnecting the named tunnel
	Stop(name string) error

	// Status returns the current status of the named tunnel
	Status(name string) model.ConnectionStatus

	// Reset forgets the status of an idle tunnel. Active sessions are left alone.
	Reset(name string)
}

// StatusSource pushes connection status changes. The core never polls.
type StatusSource interface {
	Events() <-chan model.StatusEvent
}
