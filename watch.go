package kjsonl

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watcher calls notify whenever the watched file is written, created,
// renamed or removed. The parent directory is watched, so atomic
// replacements via rename are noticed too.
type watcher struct {
	fsw    *fsnotify.Watcher
	path   string
	logger *slog.Logger
}

func newWatcher(path string, logger *slog.Logger, notify func()) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &watcher{fsw: fsw, path: path, logger: logger}
	go w.run(notify)
	return w, nil
}

// Close stops watching.
func (w *watcher) Close() error { return w.fsw.Close() }

func (w *watcher) run(notify func()) {
	name := filepath.Base(w.path)
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}

			w.logger.Debug("kjsonl: file changed", "path", w.path, "op", event.Op.String())
			notify()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("kjsonl: watch error", "path", w.path, "err", err)
		}
	}
}
