package config

import (
	"fmt"
	"os"

	"github.com/specht/specht-client/internal/domain/model"
)

// EnsureDir makes path an existing directory. A regular file in its place is
// removed first. Failures wrap model.ErrConfigDir.
func EnsureDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("%w: %s is not a directory and cannot be removed: %v", model.ErrConfigDir, path, err)
		}
	case !os.IsNotExist(err):
		return fmt.Errorf("%w: %v", model.ErrConfigDir, err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("%w: %v", model.ErrConfigDir, err)
	}
	return nil
}
