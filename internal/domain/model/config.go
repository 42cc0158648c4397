package model

import (
	"os"
	"path/filepath"
	"time"
)

// LogLevel defines logging levels
type LogLevel string

const (
	// LogLevelDebug is the level for debug messages
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the level for informational messages
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is the level for warning messages
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is the level for error messages
	LogLevelError LogLevel = "error"
)

// RegistryBackend selects where tunnel definitions are persisted
type RegistryBackend string

const (
	// RegistryBackendMemory keeps definitions in process memory
	RegistryBackendMemory RegistryBackend = "memory"
	// RegistryBackendSQLite persists definitions in a local SQLite database
	RegistryBackendSQLite RegistryBackend = "sqlite"
	// RegistryBackendConsul persists definitions in Consul KV
	RegistryBackendConsul RegistryBackend = "consul"
)

// Config is the settings structure for the specht client
type Config struct {
	// ConfigDir is the directory holding one config file per tunnel
	ConfigDir string
	// ConfigExtension is the recognized tunnel config file extension, without the dot
	ConfigExtension string
	// LogLevel is the logging level (debug, info, warn, error)
	LogLevel LogLevel
	// LogFile is the path to log file (empty for stdout only)
	LogFile string
	// RegistryBackend is the tunnel registry backend
	RegistryBackend RegistryBackend
	// RegistryPath is the SQLite database path
	RegistryPath string
	// ConsulAddress is the Consul agent address for the consul backend
	ConsulAddress string
	// ConsulPrefix is the KV prefix under which definitions are stored
	ConsulPrefix string
	// StoreTimeout bounds every registry call
	StoreTimeout time.Duration
	// ListenAddress is where serve exposes the control socket and metrics
	ListenAddress string
	// ProviderBundleID is stored on every definition
	ProviderBundleID string
	// ServerAddress is the placeholder server address stored on every definition
	ServerAddress string
	// WatchDebounce delays reconcile after config directory edits
	WatchDebounce time.Duration
}

// NewConfig creates a new Config instance with default values
func NewConfig() *Config {
	return &Config{
		ConfigDir:        defaultPath(".specht"),
		ConfigExtension:  "yaml",
		LogLevel:         LogLevelWarn,
		LogFile:          "",
		RegistryBackend:  RegistryBackendSQLite,
		RegistryPath:     filepath.Join(SettingsDir(), "registry.db"),
		ConsulAddress:    "127.0.0.1:8500",
		ConsulPrefix:     "specht/tunnels/",
		StoreTimeout:     10 * time.Second,
		ListenAddress:    "127.0.0.1:6170",
		ProviderBundleID: DefaultProviderBundleID,
		ServerAddress:    DefaultServerAddress,
		WatchDebounce:    500 * time.Millisecond,
	}
}

// SettingsDir returns the directory holding the settings file and the registry database.
// It is kept apart from ConfigDir so that settings are never scanned as tunnels.
func SettingsDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "specht")
	}
	return defaultPath(filepath.Join(".config", "specht"))
}

// GetConfigFilePath returns the path to the settings file
func (c *Config) GetConfigFilePath() string {
	return filepath.Join(SettingsDir(), "settings.yaml")
}

func defaultPath(rel string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return rel
	}
	return filepath.Join(homeDir, rel)
}
