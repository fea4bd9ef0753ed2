package ui

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 150 * time.Millisecond

// NoteWatcher signals when a note file changes on disk.
//
// The parent directory is watched so editors that save by renaming a temp file are still seen.
type NoteWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	changes chan struct{}
	errs    chan error
	done    chan struct{}
	once    sync.Once
}

// WatchNote starts watching path.
func WatchNote(path string) (*NoteWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	nw := &NoteWatcher{
		watcher: w,
		path:    abs,
		changes: make(chan struct{}, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go nw.loop()
	return nw, nil
}

// Changes delivers one value per burst of writes to the note.
func (nw *NoteWatcher) Changes() <-chan struct{} { return nw.changes }

// Errors delivers watcher failures.
func (nw *NoteWatcher) Errors() <-chan error { return nw.errs }

// Path is the absolute path being watched.
func (nw *NoteWatcher) Path() string { return nw.path }

func (nw *NoteWatcher) Close() error {
	var err error
	nw.once.Do(func() {
		close(nw.done)
		err = nw.watcher.Close()
	})
	return err
}

func (nw *NoteWatcher) loop() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-nw.done:
			return

		case event, ok := <-nw.watcher.Events:
			if !ok {
				return
			}
			if !nw.relevant(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, nw.signal)

		case err, ok := <-nw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case nw.errs <- err:
			default:
			}
		}
	}
}

func (nw *NoteWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != nw.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// signal coalesces: a change already waiting to be read absorbs this one.
func (nw *NoteWatcher) signal() {
	select {
	case nw.changes <- struct{}{}:
	default:
	}
}
