package templates

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// Watch reloads the registry whenever its templates file changes, until ctx
// is done. The containing directory is watched so editors that replace the
// file on save are picked up. onReload, if set, receives each reload's
// result.
func (r *Registry) Watch(ctx context.Context, debounce time.Duration, onReload func(error)) error {
	if r.path == "" {
		return errors.New("templates: no file to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(r.path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	go r.watchLoop(ctx, fsw, debounce, onReload)
	return nil
}

func (r *Registry) watchLoop(ctx context.Context, fsw *fsnotify.Watcher, debounce time.Duration, onReload func(error)) {
	defer fsw.Close()

	base := filepath.Base(r.path)
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			err := r.Reload()
			if err != nil {
				r.log.Warn().Err(err).Str("path", r.path).Msg("templates reload failed, keeping previous set")
			} else {
				r.log.Info().Str("path", r.path).Int("templates", len(r.Names())).Msg("templates reloaded")
			}
			if onReload != nil {
				onReload(err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			r.log.Warn().Err(err).Msg("templates watcher error")

		case <-ctx.Done():
			return
		}
	}
}
