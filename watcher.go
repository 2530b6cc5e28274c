package main

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports edits to a fixed set of files. Editors often write a file
// in several steps, so events are debounced per file.
type Watcher struct {
	Changes <-chan string // Absolute path of a changed file

	files   map[string]bool
	changes chan string
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the given files. The containing
// directories are watched so that files replaced by rename are still seen.
func NewWatcher(files ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan string, 16)
	w := &Watcher{
		Changes: ch,
		files:   make(map[string]bool),
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[abs] = true
	}
	return w, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	dirs := make(map[string]bool)
	for f := range w.files {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		dirs[dir] = true
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	const debounce = 100 * time.Millisecond
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				for file := range pending {
					w.changes <- file
				}
				return
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !w.files[name] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending[name] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					w.changes <- file
					delete(pending, file)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are not fatal.
		}
	}
}
