package watcher

import (
	"errors"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FS watches individual files through fsnotify. Events for writes,
// creates, removes and renames are forwarded; chmod-only events are not.
type FS struct {
	fw     *fsnotify.Watcher
	events chan Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewFS starts an fsnotify-backed watcher. Callers own it and must Close
// it when done.
func NewFS() (*FS, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &FS{
		fw:     fw,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Watch subscribes a file path. Watching a path twice is harmless.
func (w *FS) Watch(path string) error {
	return w.fw.Add(path)
}

// Unwatch drops a subscription. Unwatching a path that was never watched
// (or whose file is already gone) is not an error.
func (w *FS) Unwatch(path string) error {
	err := w.fw.Remove(path)
	if err != nil && errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return nil
	}
	return err
}

// Events returns the change event channel.
func (w *FS) Events() <-chan Event {
	return w.events
}

// Close stops the watcher and closes the event channel.
func (w *FS) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fw.Close()
		<-w.done
		close(w.events)
	})
	return err
}

func (w *FS) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case w.events <- Event{Path: ev.Name}:
			default:
				// A slow consumer drops events rather than stalling the
				// notify loop; the next write re-delivers.
			}
		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
		}
	}
}
