package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDelay = 100 * time.Millisecond

// Watch reloads dictionaries when one of the configured files changes on
// disk. It blocks until ctx is done or the engine stops. Changes within
// reloadDelay of each other cause a single reload.
func (e *Engine) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to watch dictionaries: %w", err)
	}
	defer w.Close()

	changed := make(chan struct{}, 1)
	id := e.Subscribe(func(ev Event) {
		if ev.Kind != EventConfigChanged {
			return
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer e.Unsubscribe(id)

	files := map[string]bool{}
	dirs := map[string]bool{}
	resync := func() {
		e.mu.Lock()
		paths := e.dictionaryPaths()
		e.mu.Unlock()
		clear(files)
		want := map[string]bool{}
		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				continue
			}
			files[abs] = true
			want[filepath.Dir(abs)] = true
		}
		for dir := range dirs {
			if !want[dir] {
				_ = w.Remove(dir)
				delete(dirs, dir)
			}
		}
		for dir := range want {
			if dirs[dir] {
				continue
			}
			if err := w.Add(dir); err != nil {
				e.logger.Warn("failed to watch dictionary directory", "dir", dir, "err", err)
				continue
			}
			dirs[dir] = true
		}
	}
	resync()

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.done:
			return nil
		case <-changed:
			resync()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if abs, err := filepath.Abs(ev.Name); err == nil && files[abs] {
				e.logger.Debug("dictionary changed", "path", abs, "op", ev.Op.String())
				timer.Reset(reloadDelay)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("dictionary watcher error", "err", err)
		case <-timer.C:
			e.ReloadDictionaries()
		}
	}
}
