package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/specht/specht-client/internal/domain/port"
)

// DirWatcher watches the config directory and fires a trigger once edits settle
type DirWatcher struct {
	dir       string
	extension string
	debounce  time.Duration
	logger    port.Logger
	fw        *fsnotify.Watcher
}

// NewDirWatcher starts watching dir. Only files with the given extension count as edits.
func NewDirWatcher(dir, extension string, debounce time.Duration, logger port.Logger) (*DirWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return &DirWatcher{
		dir:       dir,
		extension: strings.TrimPrefix(extension, "."),
		debounce:  debounce,
		logger:    logger,
		fw:        fw,
	}, nil
}

// Run calls trigger after each burst of relevant edits until ctx is done.
// The watcher is closed when Run returns.
func (w *DirWatcher) Run(ctx context.Context, trigger func()) error {
	defer w.fw.Close()
	w.logger.Info("Watching %s for tunnel config changes", w.dir)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("Config change: %s %s", ev.Op, ev.Name)
			pending = time.After(w.debounce)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error: %v", err)
		case <-pending:
			pending = nil
			trigger()
		}
	}
}

func (w *DirWatcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), "."+w.extension)
}
