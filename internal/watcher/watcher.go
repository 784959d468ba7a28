// Package watcher defines the file-watch capability the build engine
// synchronizes its subscription set against, plus the fsnotify-backed
// implementation used in watch mode.
package watcher

// Event reports that a watched file changed on disk.
type Event struct {
	Path string
}

// Watcher is the capability interface. The engine subscribes the files the
// graph reads and unsubscribes the ones it stops reading; change events
// arrive asynchronously on Events.
type Watcher interface {
	Watch(path string) error
	Unwatch(path string) error
	Events() <-chan Event
	Close() error
}

// Nop is the watcher used when watch mode is off: subscriptions are
// accepted and dropped, and no events ever arrive.
type Nop struct{}

func (Nop) Watch(string) error   { return nil }
func (Nop) Unwatch(string) error { return nil }
func (Nop) Events() <-chan Event { return nil }
func (Nop) Close() error         { return nil }
