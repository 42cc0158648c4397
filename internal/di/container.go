package di

import (
	"fmt"
	"os"

	"github.com/specht/specht-client/internal/application/service"
	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
	"github.com/specht/specht-client/internal/infrastructure/alert"
	"github.com/specht/specht-client/internal/infrastructure/config"
	"github.com/specht/specht-client/internal/infrastructure/logger"
	"github.com/specht/specht-client/internal/infrastructure/metrics"
	"github.com/specht/specht-client/internal/infrastructure/parser"
	"github.com/specht/specht-client/internal/infrastructure/registry"
	"github.com/specht/specht-client/internal/infrastructure/session"
)

// Container is a container for dependency injection
type Container struct {
	// Logger
	Logger *logger.Logger

	// Repositories
	ConfigRepository *config.ConfigRepository
	Registry         port.TunnelRegistry
	Store            *registry.AsyncStore

	// Collaborators
	Parser   *parser.YAMLParser
	Sessions *session.LoopbackController
	Alerter  *alert.Fanout
	Metrics  *metrics.Recorder

	// Services
	ConfigService *service.ConfigService
	Engine        *service.ReconcileService
	Index         *service.TunnelStateIndex
	TunnelService *service.TunnelService

	// Config
	Config *model.Config
}

// NewContainer creates a new Container instance
func NewContainer() *Container {
	return &Container{}
}

// Initialize loads the settings and sets up logging. logLevel overrides the
// configured level when not empty.
func (c *Container) Initialize(configPath, logLevel string) error {
	c.Logger = logger.NewLogger(os.Stdout, "info")
	c.ConfigRepository = config.NewConfigRepository()
	c.ConfigService = service.NewConfigService(c.ConfigRepository, c.Logger)

	var err error
	c.Config, err = c.ConfigService.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Config.LogLevel = model.LogLevel(logLevel)
	}
	c.Logger.SetLevel(string(c.Config.LogLevel))

	// If log file is specified, tee the output into it
	if c.Config.LogFile != "" {
		fileLogger, err := logger.NewFileLogger(os.Stdout, c.Config.LogFile, string(c.Config.LogLevel))
		if err != nil {
			c.Logger.Error("Failed to create file logger: %v", err)
		} else {
			c.Logger = fileLogger
			c.Logger.Info("Logs will also be written to file: %s", c.Config.LogFile)
		}
	}

	c.Alerter = alert.NewFanout(alert.NewLogAlerter(c.Logger))
	c.Metrics = metrics.NewRecorder()
	return nil
}

// InitializeTunnels prepares the config directory and wires the registry, the
// reconcile engine and the tunnel service. A config directory that cannot be
// prepared is returned as an error.
func (c *Container) InitializeTunnels() error {
	if c.Config == nil {
		return fmt.Errorf("container not initialized")
	}
	if err := config.EnsureDir(c.Config.ConfigDir); err != nil {
		return err
	}

	backend, err := registry.CreateRegistry(c.Config, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to open tunnel registry: %w", err)
	}
	c.Registry = backend
	c.Store = registry.NewAsyncStore(backend,
		registry.WithTimeout(c.Config.StoreTimeout),
		registry.WithProvider(c.Config.ProviderBundleID, c.Config.ServerAddress),
		registry.WithMetrics(c.Metrics),
	)

	c.Parser, err = parser.NewYAMLParser()
	if err != nil {
		return fmt.Errorf("failed to build config parser: %w", err)
	}

	c.Sessions = session.NewLoopbackController(c.Logger, session.DefaultTransitionDelay)

	c.Engine = service.NewReconcileService(c.Store, c.Parser, c.Alerter, c.Logger,
		c.Config.ConfigDir, c.Config.ConfigExtension)
	c.Engine.SetMetrics(c.Metrics)
	c.Index = service.NewTunnelStateIndex(c.Store, c.Sessions)
	c.TunnelService = service.NewTunnelService(c.Engine, c.Index, c.Sessions, c.Alerter, c.Logger)
	c.TunnelService.SetMetrics(c.Metrics)

	c.Logger.Debug("Tunnels wired: config dir %s, registry %s", c.Config.ConfigDir, c.Config.RegistryBackend)
	return nil
}

// Close closes all resources
func (c *Container) Close() {
	if c.Sessions != nil {
		c.Sessions.Close()
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil && c.Logger != nil {
			c.Logger.Warn("Failed to close tunnel registry: %v", err)
		}
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
