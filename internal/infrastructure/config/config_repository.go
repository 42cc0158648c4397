package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

// EnvPrefix is the prefix of environment variables overriding settings, e.g. SPECHT_CONFIG_DIR
const EnvPrefix = "SPECHT"

// ConfigRepository is an implementation of port.ConfigRepository
type ConfigRepository struct{}

// NewConfigRepository creates a new ConfigRepository instance
func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := model.NewConfig()
	v.SetDefault("config_dir", defaults.ConfigDir)
	v.SetDefault("config_extension", defaults.ConfigExtension)
	v.SetDefault("log_level", string(defaults.LogLevel))
	v.SetDefault("log_file", defaults.LogFile)
	v.SetDefault("registry_backend", string(defaults.RegistryBackend))
	v.SetDefault("registry_path", defaults.RegistryPath)
	v.SetDefault("consul_address", defaults.ConsulAddress)
	v.SetDefault("consul_prefix", defaults.ConsulPrefix)
	v.SetDefault("store_timeout", defaults.StoreTimeout)
	v.SetDefault("listen_address", defaults.ListenAddress)
	v.SetDefault("provider_bundle_id", defaults.ProviderBundleID)
	v.SetDefault("server_address", defaults.ServerAddress)
	v.SetDefault("watch_debounce", defaults.WatchDebounce)
	return v
}

// Load loads settings from file. A missing file yields the defaults,
// still overridden by SPECHT_* environment variables.
func (r *ConfigRepository) Load(configPath string) (*model.Config, error) {
	if configPath == "" {
		var err error
		configPath, err = r.GetDefaultPath()
		if err != nil {
			return nil, err
		}
	}

	v := newViper()
	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading settings file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading settings file: %w", err)
	}

	return &model.Config{
		ConfigDir:        expandHome(v.GetString("config_dir")),
		ConfigExtension:  strings.TrimPrefix(v.GetString("config_extension"), "."),
		LogLevel:         model.LogLevel(v.GetString("log_level")),
		LogFile:          expandHome(v.GetString("log_file")),
		RegistryBackend:  model.RegistryBackend(v.GetString("registry_backend")),
		RegistryPath:     expandHome(v.GetString("registry_path")),
		ConsulAddress:    v.GetString("consul_address"),
		ConsulPrefix:     v.GetString("consul_prefix"),
		StoreTimeout:     v.GetDuration("store_timeout"),
		ListenAddress:    v.GetString("listen_address"),
		ProviderBundleID: v.GetString("provider_bundle_id"),
		ServerAddress:    v.GetString("server_address"),
		WatchDebounce:    v.GetDuration("watch_debounce"),
	}, nil
}

// Save saves settings to file
func (r *ConfigRepository) Save(config *model.Config, configPath string) error {
	if configPath == "" {
		var err error
		configPath, err = r.GetDefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating settings directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configPath)

	v.Set("config_dir", config.ConfigDir)
	v.Set("config_extension", config.ConfigExtension)
	v.Set("log_level", string(config.LogLevel))
	v.Set("log_file", config.LogFile)
	v.Set("registry_backend", string(config.RegistryBackend))
	v.Set("registry_path", config.RegistryPath)
	v.Set("consul_address", config.ConsulAddress)
	v.Set("consul_prefix", config.ConsulPrefix)
	v.Set("store_timeout", config.StoreTimeout.String())
	v.Set("listen_address", config.ListenAddress)
	v.Set("provider_bundle_id", config.ProviderBundleID)
	v.Set("server_address", config.ServerAddress)
	v.Set("watch_debounce", config.WatchDebounce.String())

	if err := v.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("error saving settings: %w", err)
	}

	return nil
}

// GetDefaultPath returns the default path for the settings file
func (r *ConfigRepository) GetDefaultPath() (string, error) {
	return filepath.Join(model.SettingsDir(), "settings.yaml"), nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Ensure ConfigRepository implements port.ConfigRepository
var _ port.ConfigRepository = (*ConfigRepository)(nil)
