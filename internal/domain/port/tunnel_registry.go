package port

import (
	"context"

	"github.com/specht/specht-client/internal/domain/model"
)

// TunnelRegistry is a blocking backend persisting tunnel definitions.
// Definitions are unique by model.NameKey of their name.
type TunnelRegistry interface {
	// List returns every persisted definition
	List(ctx context.Context) ([]model.TunnelDefinition, error)

	// Remove deletes one definition; removing a missing definition succeeds
	Remove(ctx context.Context, def model.TunnelDefinition) error

	// Put stores a definition, overwriting any definition with the same name key
	Put(ctx context.Context, def model.TunnelDefinition) error

	// Close releases the backend
	Close() error
}

// TunnelRegistryStore is the asynchronous accessor over persisted tunnel definitions.
// Every call returns immediately; its completion is invoked exactly once, on a goroutine
// owned by the store, in no particular order relative to other calls.
type TunnelRegistryStore interface {
	// ListAll enumerates the persisted definitions
	ListAll(ctx context.Context, done func([]model.TunnelDefinition, error))

	// Remove deletes one persisted definition
	Remove(ctx context.Context, def model.TunnelDefinition, done func(error))

	// Create persists a definition under name, overwriting on collision
	Create(ctx context.Context, name string, payload model.Payload, done func(error))
}
