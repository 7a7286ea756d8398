// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	applog "fadeout/internal/log"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce collapses the burst of events editors produce on save.
const reloadDebounce = 100 * time.Millisecond

// Watcher reloads a Store whenever its file changes on disk, so settings
// edited outside the program apply to the next fade.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher

	// Reloaded receives the store path after every successful reload. It is
	// buffered and never blocks the watcher.
	Reloaded chan string

	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// WatchStore starts watching the directory holding store's file. Watching
// the directory instead of the file survives editors that replace files by
// renaming.
func WatchStore(store *Store) (*Watcher, error) {
	if store.Path() == "" {
		return nil, fmt.Errorf("config: cannot watch a memory-only store")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(store.Path())
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	watcher := &Watcher{
		store:    store,
		watcher:  w,
		Reloaded: make(chan string, 4),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go watcher.run()
	applog.Debugf("Watcher: Watching %s", store.Path())
	return watcher, nil
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)

	target := filepath.Clean(w.store.Path())
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			applied, err := w.store.ReloadIfClean()
			if err != nil {
				applog.Warnf("Watcher: Reload of %s failed: %v", target, err)
				continue
			}
			if !applied {
				applog.Warnf("Watcher: %s changed on disk with unsaved local changes, keeping local values", target)
				continue
			}
			applog.Infof("Watcher: Reloaded settings from %s", target)
			select {
			case w.Reloaded <- target:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			applog.Warnf("Watcher: %v", err)
		case <-w.closeCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
