package port

import "github.com/specht/specht-client/internal/domain/model"

// ConfigRepository defines operations that can be performed on the settings file
type ConfigRepository interface {
	// Load loads settings from storage
	Load(path string) (*model.Config, error)

	// Save saves settings to storage
	Save(config *model.Config, path string) error

	// GetDefaultPath returns the default path for the settings file
	GetDefaultPath() (string, error)
}
