package sounds

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the library whenever its file is written, until ctx ends.
// onReload, if set, runs after each successful reload.
func (l *Library) Watch(ctx context.Context, onReload func()) error {
	if l.path == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(l.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	l.log.Debug("fsnotify watching dir", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(l.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			l.log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			if err := l.Reload(); err != nil {
				l.log.Error("Failed to reload sound library", "error", err)
				continue
			}
			if onReload != nil {
				onReload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.log.Debug("fsnotify error", "dir", dir, "error", err)
		}
	}
}
