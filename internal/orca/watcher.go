package orca

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/agentstation/spoolsync/pkg/errors"
	"github.com/agentstation/spoolsync/pkg/logging"
)

// Watcher watches a filament directory and reports when profile files change.
// Events are debounced: slicers write files in bursts, and one reconciliation
// pass per burst is enough.
type Watcher struct {
	dir      string
	debounce time.Duration
	fw       *fsnotify.Watcher
}

// NewWatcher creates a Watcher over dir. A non-positive debounce gets a
// 500ms default.
func NewWatcher(dir string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &errors.IOError{Operation: "watch", Path: dir, Err: err}
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, &errors.IOError{Operation: "watch", Path: dir, Err: err}
	}
	return &Watcher{dir: dir, debounce: debounce, fw: fw}, nil
}

// Run blocks, invoking trigger once per debounced burst of profile changes,
// until the context is canceled. The watcher is closed on return.
func (w *Watcher) Run(ctx context.Context, trigger func(ctx context.Context)) error {
	defer w.fw.Close()
	log := logging.Ctx(ctx)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("profile file changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					<-fire
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			trigger(ctx)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("filesystem watch error")
		}
	}
}

// relevant filters to create and write events on profile files, ignoring the
// temp files our own atomic writes produce.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, ".tmp") {
		return false
	}
	return isProfilePath(name)
}
