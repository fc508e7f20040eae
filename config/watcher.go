package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/utils"
)

// DefaultSettleTime is how long a config file must go without changes before it is re-read.
const DefaultSettleTime = 250 * time.Millisecond

// A Watcher is responsible for watching for changes
// to a config from some source and delivering those changes
// to some destination.
type Watcher interface {
	Config() <-chan *Config
	Close() error
}

// NewWatcher returns an optimally selected Watcher based on the
// given config. Only configs read from a file can be watched.
func NewWatcher(ctx context.Context, config *Config, settle time.Duration, logger logging.Logger) (Watcher, error) {
	if config.ConfigFilePath == "" {
		return nil, errors.New("cannot watch a config that was not read from a file")
	}
	return newFSWatcher(ctx, config, settle, logger)
}

type fsConfigWatcher struct {
	fsWatcher *fsnotify.Watcher
	configCh  chan *Config
	workers   utils.StoppableWorkers
	logger    logging.Logger

	mu   sync.Mutex
	last *Config
}

func newFSWatcher(ctx context.Context, config *Config, settle time.Duration, logger logging.Logger) (*fsConfigWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors commonly replace the file rather than writing in place, so the directory is
	// watched and events are filtered down to the file.
	path, err := filepath.Abs(config.ConfigFilePath)
	if err != nil {
		return nil, multierr.Combine(err, fsWatcher.Close())
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		return nil, multierr.Combine(err, fsWatcher.Close())
	}

	watcher := &fsConfigWatcher{
		fsWatcher: fsWatcher,
		configCh:  make(chan *Config),
		logger:    logger,
		last:      config,
	}
	debounced := debounce.New(settle)
	watcher.workers = utils.NewStoppableWorkersWithContext(ctx, func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				debounced(func() { watcher.reload(ctx, path) })
			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				logger.CErrorw(ctx, "error watching config file", "path", path, "error", err)
			}
		}
	})
	return watcher, nil
}

func (w *fsConfigWatcher) reload(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	newConfig, err := Read(ctx, path, w.logger)
	if err != nil {
		w.logger.CErrorw(ctx, "error reading changed config, keeping the previous one", "path", path, "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	diff, err := DiffConfigs(*w.last, *newConfig)
	if err != nil {
		w.logger.CErrorw(ctx, "error diffing configs", "error", err)
		return
	}
	if diff.ResourcesEqual && w.last.Debug == newConfig.Debug {
		w.logger.CDebugw(ctx, "config file touched without changes", "path", path)
		return
	}
	w.logger.CInfow(ctx, "config changed", "path", path, "diff", diff.String())

	select {
	case <-ctx.Done():
	case w.configCh <- newConfig:
		w.last = newConfig
	}
}

func (w *fsConfigWatcher) Config() <-chan *Config {
	return w.configCh
}

func (w *fsConfigWatcher) Close() error {
	w.workers.Stop()
	return w.fsWatcher.Close()
}
