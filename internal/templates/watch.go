package templates

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the templates whenever an *.html file in the override
// directory changes, batching bursts of events within debounce. onReload
// receives the result of every reload. Watch blocks until ctx is done.
func (r *Renderer) Watch(ctx context.Context, debounce time.Duration, onReload func(error)) error {
	if r.dir == "" {
		return errors.New("no fragments directory to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(r.dir); err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".html") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if onReload != nil {
				onReload(err)
			}
		case <-timer.C:
			err := r.Reload()
			if onReload != nil {
				onReload(err)
			}
		}
	}
}
