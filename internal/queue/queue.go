// Package queue provides the bounded-concurrency work queue the build
// engine drains once per phase. Tasks may enqueue further tasks while
// running, and a queue can be re-run after a previous drain, which is how
// the engine reuses one queue across its update and complete phases.
package queue

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency caps in-flight tasks when the caller does not choose
// a limit.
const DefaultConcurrency = 8

// Task is one deferred unit of work.
type Task func(ctx context.Context) error

// Queue runs submitted tasks with a concurrency ceiling. The zero value is
// not usable; construct with New.
type Queue struct {
	sem *semaphore.Weighted

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Task
	running int
	err     error
}

// New creates a queue that keeps at most limit tasks in flight. A
// non-positive limit falls back to DefaultConcurrency.
func New(limit int) *Queue {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	q := &Queue{sem: semaphore.NewWeighted(int64(limit))}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Add enqueues a task. Safe to call from within a running task; a Run in
// progress picks the task up before it returns.
func (q *Queue) Add(task Task) {
	q.mu.Lock()
	q.pending = append(q.pending, task)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Run executes queued tasks until the queue is drained and no started task
// is still running. The first task failure is returned and stops new tasks
// from being scheduled, but tasks already started run to completion so
// their effects are never left half-applied. After Run returns the queue
// is empty and reusable.
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	for {
		if q.err != nil {
			// Short-circuit: drop what has not started, wait out the rest.
			q.pending = nil
			if q.running == 0 {
				err := q.err
				q.err = nil
				q.mu.Unlock()
				return err
			}
			q.cond.Wait()
			continue
		}

		if len(q.pending) == 0 {
			if q.running == 0 {
				q.mu.Unlock()
				return nil
			}
			q.cond.Wait()
			continue
		}

		task := q.pending[0]
		q.pending = q.pending[1:]
		q.running++
		q.mu.Unlock()

		if err := q.sem.Acquire(ctx, 1); err != nil {
			q.mu.Lock()
			q.running--
			if q.err == nil {
				q.err = err
			}
			continue
		}

		// A failure may have landed while this task waited for a slot;
		// it has not started, so it must not start now.
		q.mu.Lock()
		if q.err != nil {
			q.running--
			q.sem.Release(1)
			continue
		}
		q.mu.Unlock()

		go func() {
			defer q.sem.Release(1)
			err := task(ctx)

			q.mu.Lock()
			q.running--
			if err != nil && q.err == nil {
				q.err = err
			}
			q.mu.Unlock()
			q.cond.Broadcast()
		}()

		q.mu.Lock()
	}
}
