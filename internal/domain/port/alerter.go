package port

import "github.com/specht/specht-client/internal/domain/model"

// Alerter surfaces user-visible failures without blocking the caller
type Alerter interface {
	Alert(err error)
}

// EventPublisher broadcasts control surface events to connected clients
type EventPublisher interface {
	Publish(msgType model.MessageType, payload interface{})
}
