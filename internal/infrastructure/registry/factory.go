package registry

import (
	"fmt"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

// CreateRegistry opens the registry backend selected by the settings
func CreateRegistry(config *model.Config, logger port.Logger) (port.TunnelRegistry, error) {
	switch config.RegistryBackend {
	case model.RegistryBackendMemory:
		return NewMemoryRegistry(), nil
	case model.RegistryBackendSQLite, "":
		logger.Debug("Opening registry database %s", config.RegistryPath)
		return OpenSQLiteRegistry(config.RegistryPath)
	case model.RegistryBackendConsul:
		return NewConsulRegistry(config.ConsulAddress, config.ConsulPrefix, logger)
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownBackend, config.RegistryBackend)
	}
}
