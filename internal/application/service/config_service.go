package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

// ConfigService is a service for managing settings
type ConfigService struct {
	configRepo port.ConfigRepository
	logger     port.Logger
}

// NewConfigService creates a new ConfigService instance
func NewConfigService(configRepo port.ConfigRepository, logger port.Logger) *ConfigService {
	return &ConfigService{
		configRepo: configRepo,
		logger:     logger,
	}
}

// LoadConfig loads settings from a file
func (s *ConfigService) LoadConfig(configPath string) (*model.Config, error) {
	// If configPath is empty, use the default path
	if configPath == "" {
		var err error
		configPath, err = s.configRepo.GetDefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default path: %w", err)
		}
	}

	config, err := s.configRepo.Load(configPath)
	if err != nil {
		s.logger.Warn("Failed to load settings from %s: %v", configPath, err)
		// Fall back to defaults so a broken settings file never blocks startup
		return model.NewConfig(), nil
	}

	s.logger.Info("Settings loaded from %s", configPath)

	return config, nil
}

// SaveConfig saves settings to a file
func (s *ConfigService) SaveConfig(config *model.Config, configPath string) error {
	if configPath == "" {
		var err error
		configPath, err = s.configRepo.GetDefaultPath()
		if err != nil {
			return fmt.Errorf("failed to get default path: %w", err)
		}
	}

	if err := s.configRepo.Save(config, configPath); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	s.logger.Info("Settings saved to %s", configPath)

	return nil
}

var setters = map[string]func(*model.Config, string) error{
	"config_dir":       func(c *model.Config, v string) error { c.ConfigDir = v; return nil },
	"config_extension": func(c *model.Config, v string) error { c.ConfigExtension = strings.TrimPrefix(v, "."); return nil },
	"log_level": func(c *model.Config, v string) error {
		switch model.LogLevel(v) {
		case model.LogLevelDebug, model.LogLevelInfo, model.LogLevelWarn, model.LogLevelError:
			c.LogLevel = model.LogLevel(v)
			return nil
		}
		return fmt.Errorf("invalid log level: %s", v)
	},
	"log_file": func(c *model.Config, v string) error { c.LogFile = v; return nil },
	"registry_backend": func(c *model.Config, v string) error {
		switch model.RegistryBackend(v) {
		case model.RegistryBackendMemory, model.RegistryBackendSQLite, model.RegistryBackendConsul:
			c.RegistryBackend = model.RegistryBackend(v)
			return nil
		}
		return fmt.Errorf("%w: %s", model.ErrUnknownBackend, v)
	},
	"registry_path":      func(c *model.Config, v string) error { c.RegistryPath = v; return nil },
	"consul_address":     func(c *model.Config, v string) error { c.ConsulAddress = v; return nil },
	"consul_prefix":      func(c *model.Config, v string) error { c.ConsulPrefix = v; return nil },
	"listen_address":     func(c *model.Config, v string) error { c.ListenAddress = v; return nil },
	"provider_bundle_id": func(c *model.Config, v string) error { c.ProviderBundleID = v; return nil },
	"server_address":     func(c *model.Config, v string) error { c.ServerAddress = v; return nil },
	"store_timeout": func(c *model.Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		c.StoreTimeout = d
		return nil
	},
	"watch_debounce": func(c *model.Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		c.WatchDebounce = d
		return nil
	},
}

// Set changes one setting by key
func (s *ConfigService) Set(config *model.Config, key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("invalid configuration key: %s", key)
	}
	return set(config, value)
}

// Keys returns the settable keys in order
func (s *ConfigService) Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
