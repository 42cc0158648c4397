//go:build !consul

package registry

import (
	"github.com/specht/specht-client/internal/domain/port"
)

// NewConsulRegistry returns a memory registry when the consul build tag is not enabled
func NewConsulRegistry(addr, prefix string, logger port.Logger) (port.TunnelRegistry, error) {
	logger.Warn("consul registry requested (addr=%s prefix=%s) but consul build tag not enabled; using memory registry", addr, prefix)
	return NewMemoryRegistry(), nil
}
