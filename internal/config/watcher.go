package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"overlaycore/application/cert"
	"overlaycore/application/logging"
)

// PolicyUpdater receives a fresh cert.Policy whenever the configuration
// file changes on disk. *cert.Policy fields are read without further
// synchronization elsewhere, so implementations should install it behind
// whatever the Session's policy field actually is (here, Gateway holds a
// *cert.Policy pointer which a restart-free update would need to swap
// atomically — left to the caller, since Session always dereferences the
// pointer it was constructed with rather than re-reading configuration
// directly, per Design Note 5).
type PolicyUpdater interface {
	Update(policy *cert.Policy)
}

// Watcher watches a single configuration file for changes using fsnotify,
// grounded on the teacher's
// infrastructure/PAL/configuration/server.ConfigWatcher: it watches the
// containing directory (atomic config writes are write-temp-then-rename,
// which loses a watch on the original file inode) and filters events down
// to the one file it cares about.
type Watcher struct {
	path    string
	updater PolicyUpdater
	logger  logging.Logger
}

// NewWatcher returns a Watcher for path.
func NewWatcher(path string, updater PolicyUpdater, logger logging.Logger) *Watcher {
	return &Watcher{path: path, updater: updater, logger: logger}
}

// Watch blocks until ctx is cancelled, pushing a reloaded policy to the
// updater on every detected write/create/rename of the watched file.
func (w *Watcher) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Printf("config: fsnotify unavailable: %v", err)
		<-ctx.Done()
		return
	}
	defer func() { _ = watcher.Close() }()

	dir, file := filepath.Split(w.path)
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		w.logger.Printf("config: watch %s failed: %v", dir, err)
		<-ctx.Done()
		return
	}
	w.logger.Printf("config: watching %s for changes to %s", dir, file)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			_, eventFile := filepath.Split(event.Name)
			if eventFile != file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("config: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	f, err := Load(w.path)
	if err != nil {
		w.logger.Printf("config: reload %s failed: %v", w.path, err)
		return
	}
	w.updater.Update(f.Policy())
	w.logger.Printf("config: reloaded policy from %s", w.path)
}
