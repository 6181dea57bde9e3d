package bootstrap

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// configWatcher re-runs reconciliation when the configuration file
// changes. The parent directory is watched rather than the file so
// atomic rename-into-place updates (the editors' and configuration
// managers' default) are still observed.
type configWatcher struct {
	app      *App
	path     string
	notifier *fsnotify.Watcher
	done     chan struct{}
}

const watchDebounce = 200 * time.Millisecond

func newConfigWatcher(a *App, path string) (*configWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := notifier.Add(filepath.Dir(abs)); err != nil {
		notifier.Close()
		return nil, err
	}

	return &configWatcher{
		app:      a,
		path:     abs,
		notifier: notifier,
		done:     make(chan struct{}),
	}, nil
}

func (w *configWatcher) start() {
	go w.loop()
	w.app.Logger.Info().Str("file", w.path).Msg("watching configuration file")
}

func (w *configWatcher) stop() {
	close(w.done)
	w.notifier.Close()
}

func (w *configWatcher) loop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.notifier.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Writers emit bursts of events; collapse them into one
			// reconcile per quiet period.
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				fire = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-w.notifier.Errors:
			if !ok {
				return
			}
			w.app.Logger.Error().Err(err).Msg("config watch error")
		case <-fire:
			timer = nil
			fire = nil
			if err := w.app.Reconcile(context.Background()); err != nil {
				w.app.Logger.Error().Err(err).Msg("reload failed, keeping previous configuration")
			}
		}
	}
}
