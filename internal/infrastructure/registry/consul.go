//go:build consul

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

// ConsulRegistry stores definitions in Consul KV, one key per name key
type ConsulRegistry struct {
	kv     *consulapi.KV
	prefix string
}

// NewConsulRegistry creates a Consul-backed registry (requires build tag consul)
func NewConsulRegistry(addr, prefix string, _ port.Logger) (port.TunnelRegistry, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &ConsulRegistry{kv: cli.KV(), prefix: prefix}, nil
}

func (r *ConsulRegistry) key(def model.TunnelDefinition) string {
	return r.prefix + url.PathEscape(def.Key())
}

func (r *ConsulRegistry) List(ctx context.Context) ([]model.TunnelDefinition, error) {
	q := &consulapi.QueryOptions{}
	pairs, _, err := r.kv.List(r.prefix, q.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	out := make([]model.TunnelDefinition, 0, len(pairs))
	for _, p := range pairs {
		var def model.TunnelDefinition
		if err := json.Unmarshal(p.Value, &def); err != nil {
			return nil, fmt.Errorf("corrupt definition at %s: %w", p.Key, err)
		}
		out = append(out, def)
	}
	return out, nil
}

func (r *ConsulRegistry) Remove(ctx context.Context, def model.TunnelDefinition) error {
	w := &consulapi.WriteOptions{}
	if _, err := r.kv.Delete(r.key(def), w.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", def.Name, err)
	}
	return nil
}

func (r *ConsulRegistry) Put(ctx context.Context, def model.TunnelDefinition) error {
	b, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", def.Name, err)
	}
	w := &consulapi.WriteOptions{}
	if _, err := r.kv.Put(&consulapi.KVPair{Key: r.key(def), Value: b}, w.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to store %s: %w", def.Name, err)
	}
	return nil
}

func (r *ConsulRegistry) Close() error { return nil }
