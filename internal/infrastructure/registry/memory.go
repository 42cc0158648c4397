package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

// MemoryRegistry keeps definitions in process memory
type MemoryRegistry struct {
	mu   sync.RWMutex
	defs map[string]model.TunnelDefinition
}

// NewMemoryRegistry creates an empty MemoryRegistry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{defs: make(map[string]model.TunnelDefinition)}
}

func (m *MemoryRegistry) List(ctx context.Context) ([]model.TunnelDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.TunnelDefinition, 0, len(m.defs))
	for _, d := range m.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryRegistry) Remove(ctx context.Context, def model.TunnelDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.defs[def.Key()]
	if !ok {
		return nil
	}
	// a newer definition under the same name is left alone
	if def.ID != "" && current.ID != def.ID {
		return nil
	}
	delete(m.defs, def.Key())
	return nil
}

func (m *MemoryRegistry) Put(ctx context.Context, def model.TunnelDefinition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defs[def.Key()] = def
	return nil
}

func (m *MemoryRegistry) Close() error { return nil }

// Ensure MemoryRegistry implements port.TunnelRegistry
var _ port.TunnelRegistry = (*MemoryRegistry)(nil)
