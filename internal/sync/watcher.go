package syncx

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mind-engage/testnav/internal/testmap"
)

// MapWatcher watches the cached test-map payload file written by the
// synchronization agent and hands each parsed payload to the callback. The
// callback decides full replace vs patch from the payload's scope.
type MapWatcher struct {
	path    string
	onMap   func(*testmap.TestMap)
	watcher *fsnotify.Watcher
}

func NewMapWatcher(path string, onMap func(*testmap.TestMap)) (*MapWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors and sync agents replace the file by
	// rename, which drops a watch on the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	return &MapWatcher{path: path, onMap: onMap, watcher: w}, nil
}

// Run blocks until the context is canceled, reloading the payload on every
// write or rename of the watched file. Parse failures are logged and
// skipped; a half-written file must not poison the session.
func (mw *MapWatcher) Run(ctx context.Context) error {
	defer mw.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-mw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(mw.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// Give the writer a moment to finish the rename/close.
			time.Sleep(50 * time.Millisecond)
			mw.reload()
		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("map watcher: %v", err)
		}
	}
}

func (mw *MapWatcher) reload() {
	payload, err := os.ReadFile(mw.path)
	if err != nil {
		log.Printf("map watcher: read %s: %v", mw.path, err)
		return
	}
	m, err := testmap.Parse(payload)
	if err != nil {
		log.Printf("map watcher: parse %s: %v", mw.path, err)
		return
	}
	mw.onMap(m)
}
