// Package watch triggers a callback when a configuration file changes, so
// the daemon can pick up tuned obfuscation settings without a restart.
package watch

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounce = 500 * time.Millisecond

// Watcher watches a single file for writes.
type Watcher struct {
	file     string
	callback func() error
	watcher  *fsnotify.Watcher
	log      *zap.Logger
	done     chan struct{}
}

// NewWatcher watches file and runs callback after each write settles. The
// containing directory is watched so editors that replace the file are
// still caught.
func NewWatcher(file string, callback func() error, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	absPath, err := filepath.Abs(file)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", file, err)
	}

	return &Watcher{
		file:     absPath,
		callback: callback,
		watcher:  watcher,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// Start begins delivering callbacks in a background goroutine.
func (w *Watcher) Start() {
	go func() {
		debounceTimer := time.NewTimer(debounce)
		debounceTimer.Stop()
		var debounceCh <-chan time.Time

		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				eventPath, err := filepath.Abs(event.Name)
				if err == nil && eventPath == w.file {
					debounceTimer.Reset(debounce)
					debounceCh = debounceTimer.C
				}

			case <-debounceCh:
				debounceCh = nil
				if err := w.callback(); err != nil {
					w.log.Warn("config reload failed", zap.Error(err))
				} else {
					w.log.Info("configuration reloaded", zap.String("file", w.file))
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("watch error", zap.Error(err))

			case <-w.done:
				return
			}
		}
	}()
}

// Stop stops watching the file.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}
