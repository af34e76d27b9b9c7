package config

import (
	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch re-reads the configuration whenever the config file changes and
// invokes onChange with the freshly unmarshaled value. It returns a stop
// function releasing the watcher. Watch requires an explicit config file set
// via SetConfigFile.
func Watch(onChange func(*Config)) (stop func(), err error) {
	mu.RLock()
	file := configFile
	mu.RUnlock()
	if len(file) == 0 {
		return nil, errors.New("config watch requires SetConfigFile")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fs watcher")
	}
	if err = watcher.Add(file); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrapf(err, "failed to watch %s", file)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := Init(); err != nil {
					zap.S().Warnw("failed to reload config", "file", file, "error", err)
					continue
				}
				if onChange != nil {
					onChange(App)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				zap.S().Warnw("config watch error", "file", file, "error", err)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
