// Package engine drives an asset graph to completeness: it orchestrates
// the task queue, the resolver and transformer capabilities, and the file
// watcher, converging in two phases after partial invalidation and
// aborting cooperatively when a new change arrives mid-build.
package engine

import (
	"errors"
	"sync"

	"github.com/packden/packden/internal/assetgraph"
	"github.com/packden/packden/internal/queue"
	"github.com/packden/packden/internal/resolver"
	"github.com/packden/packden/internal/transformer"
	"github.com/packden/packden/internal/watcher"
)

// Options configures a build engine instance.
type Options struct {
	// Entries are dependency specifiers seeded as graph roots.
	Entries []string
	// EntryRequests are synthetic transform requests seeded as graph
	// roots; runtime injection builds start from one of these.
	EntryRequests []*assetgraph.Request
	// Env is the environment entry dependencies are built for.
	Env assetgraph.Environment

	Resolver    resolver.Resolver
	Transformer transformer.Transformer
	// Watcher may be nil; the engine then runs without invalidation.
	Watcher watcher.Watcher
	// Concurrency caps in-flight resolve/transform tasks.
	Concurrency int
}

// Engine owns one asset graph for its lifetime and is the only component
// that mutates it. Nested engines spawned during runtime injection each
// own their private graph.
type Engine struct {
	graph       *assetgraph.Graph
	queue       *queue.Queue
	resolver    *resolver.Runner
	transformer transformer.Transformer
	watcher     watcher.Watcher

	mu        sync.Mutex
	current   *token
	observers []func(path string)

	stop      chan struct{}
	stopOnce  sync.Once
	watchDone chan struct{}
}

// token is the per-build cancellation handle. It is set at most once, by
// watch-driven invalidation, and observed cooperatively at checkpoints.
type token struct {
	ch   chan struct{}
	once sync.Once
}

func (t *token) cancel() {
	t.once.Do(func() { close(t.ch) })
}

func (t *token) aborted() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// New creates an engine and seeds its graph with the configured entries.
func New(opts Options) (*Engine, error) {
	if opts.Resolver == nil {
		return nil, errors.New("engine: a resolver capability is required")
	}
	if opts.Transformer == nil {
		return nil, errors.New("engine: a transformer capability is required")
	}
	w := opts.Watcher
	if w == nil {
		w = watcher.Nop{}
	}

	g := assetgraph.New()
	g.Initialize(opts.Env, opts.Entries...)
	for _, req := range opts.EntryRequests {
		g.AddEntryRequest(req)
	}

	e := &Engine{
		graph:       g,
		queue:       queue.New(opts.Concurrency),
		resolver:    resolver.NewRunner(opts.Resolver),
		transformer: opts.Transformer,
		watcher:     w,
		stop:        make(chan struct{}),
	}
	if events := w.Events(); events != nil {
		e.watchDone = make(chan struct{})
		go e.watchLoop(events)
	}
	return e, nil
}

// Graph exposes the engine's asset graph. Callers must treat it as
// read-only; the engine is its sole writer.
func (e *Engine) Graph() *assetgraph.Graph {
	return e.graph
}

// OnInvalidate registers an observer called with the changed file path
// whenever a watch event invalidates a node of this engine's graph.
func (e *Engine) OnInvalidate(fn func(path string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Close stops the watch loop. It does not close the underlying watcher,
// which the caller owns.
func (e *Engine) Close() {
	e.stopOnce.Do(func() { close(e.stop) })
	if e.watchDone != nil {
		<-e.watchDone
	}
}

// newToken installs and returns a fresh cancellation token for a build.
func (e *Engine) newToken() *token {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = &token{ch: make(chan struct{})}
	return e.current
}

func (e *Engine) watchLoop(events <-chan watcher.Event) {
	defer close(e.watchDone)
	for {
		select {
		case <-e.stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.handleChange(ev.Path)
		}
	}
}

// handleChange routes one watch event: nodes for the path are flagged
// invalid, the current build token is cancelled so in-flight work aborts
// at its next checkpoint, and observers are notified.
func (e *Engine) handleChange(path string) {
	if !e.graph.InvalidateFile(path) {
		return
	}

	e.mu.Lock()
	tok := e.current
	observers := make([]func(string), len(e.observers))
	copy(observers, e.observers)
	e.mu.Unlock()

	if tok != nil {
		tok.cancel()
	}
	for _, fn := range observers {
		fn(path)
	}
}
