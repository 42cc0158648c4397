package service

import (
	"context"
	"sort"
	"sync"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

// TunnelStateIndex maps tunnel names to their definition and live status.
// It is rebuilt wholesale after every reconcile pass and updated in place by status events.
type TunnelStateIndex struct {
	store    port.TunnelRegistryStore
	sessions port.SessionController

	mu      sync.RWMutex
	handles map[string]*model.TunnelHandle
}

// NewTunnelStateIndex creates an empty index. sessions seeds the status of rebuilt
// handles and may be nil, in which case every handle starts disconnected.
func NewTunnelStateIndex(store port.TunnelRegistryStore, sessions port.SessionController) *TunnelStateIndex {
	return &TunnelStateIndex{
		store:    store,
		sessions: sessions,
		handles:  make(map[string]*model.TunnelHandle),
	}
}

// Rebuild lists the registry and replaces the whole mapping with the result.
// On a listing failure the mapping is left untouched and the error is passed to done.
func (i *TunnelStateIndex) Rebuild(ctx context.Context, done func(error)) {
	i.store.ListAll(ctx, func(defs []model.TunnelDefinition, err error) {
		if err == nil {
			i.Replace(defs)
		}
		if done != nil {
			done(err)
		}
	})
}

// Replace discards every handle and builds new ones from defs
func (i *TunnelStateIndex) Replace(defs []model.TunnelDefinition) {
	handles := make(map[string]*model.TunnelHandle, len(defs))
	for _, def := range defs {
		status := model.StatusDisconnected
		if i.sessions != nil {
			status = i.sessions.Status(def.Name)
		}
		handles[def.Name] = &model.TunnelHandle{Definition: def, Status: status}
	}

	i.mu.Lock()
	i.handles = handles
	i.mu.Unlock()
}

// ApplyStatusChange updates one handle in place and reports whether the name was present.
// Unknown names are ignored: the definition may be mid-rebuild.
func (i *TunnelStateIndex) ApplyStatusChange(name string, status model.ConnectionStatus) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	h, ok := i.handles[name]
	if !ok {
		return false
	}
	h.Status = status
	return true
}

// Find returns a copy of the named handle
func (i *TunnelStateIndex) Find(name string) (model.TunnelHandle, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	h, ok := i.handles[name]
	if !ok {
		return model.TunnelHandle{}, false
	}
	return *h, true
}

// AnyConnected reports whether some tunnel is connecting, connected, reasserting or disconnecting
func (i *TunnelStateIndex) AnyConnected() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, h := range i.handles {
		if h.Status.IsActive() {
			return true
		}
	}
	return false
}

// Snapshot returns copies of every handle ordered by name
func (i *TunnelStateIndex) Snapshot() []model.TunnelHandle {
	i.mu.RLock()
	out := make([]model.TunnelHandle, 0, len(i.handles))
	for _, h := range i.handles {
		out = append(out, *h)
	}
	i.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].Name() < out[b].Name() })
	return out
}

// Len returns the number of indexed tunnels
func (i *TunnelStateIndex) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.handles)
}
