package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDrainsAllTasks(t *testing.T) {
	q := New(4)
	var count atomic.Int32
	for i := 0; i < 20; i++ {
		q.Add(func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
	}
	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, int32(20), count.Load())
}

func TestRunEmptyQueue(t *testing.T) {
	q := New(2)
	require.NoError(t, q.Run(context.Background()))
}

func TestTasksCanAddTasks(t *testing.T) {
	q := New(2)
	var count atomic.Int32

	var spawn func(depth int) Task
	spawn = func(depth int) Task {
		return func(ctx context.Context) error {
			count.Add(1)
			if depth > 0 {
				q.Add(spawn(depth - 1))
				q.Add(spawn(depth - 1))
			}
			return nil
		}
	}

	q.Add(spawn(3))
	require.NoError(t, q.Run(context.Background()))
	// 1 + 2 + 4 + 8 tasks in the spawn tree.
	assert.Equal(t, int32(15), count.Load())
}

func TestConcurrencyCeiling(t *testing.T) {
	const limit = 3
	q := New(limit)

	var inFlight, peak atomic.Int32
	for i := 0; i < 24; i++ {
		q.Add(func(ctx context.Context) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		})
	}
	require.NoError(t, q.Run(context.Background()))
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestFirstFailureShortCircuits(t *testing.T) {
	q := New(1)
	boom := errors.New("boom")
	var started atomic.Int32

	q.Add(func(ctx context.Context) error {
		started.Add(1)
		return boom
	})
	for i := 0; i < 10; i++ {
		q.Add(func(ctx context.Context) error {
			started.Add(1)
			return nil
		})
	}

	err := q.Run(context.Background())
	require.ErrorIs(t, err, boom)
	// With concurrency 1 nothing after the failing task may start.
	assert.Equal(t, int32(1), started.Load())
}

func TestStartedTasksFinishAfterFailure(t *testing.T) {
	q := New(2)
	boom := errors.New("boom")

	release := make(chan struct{})
	var finished atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)

	q.Add(func(ctx context.Context) error {
		wg.Done()
		<-release
		finished.Store(true)
		return nil
	})
	q.Add(func(ctx context.Context) error {
		wg.Wait() // make sure the slow task has started first
		return boom
	})

	done := make(chan error, 1)
	go func() { done <- q.Run(context.Background()) }()

	wg.Wait()
	close(release)
	err := <-done
	require.ErrorIs(t, err, boom)
	assert.True(t, finished.Load())
}

func TestQueueIsReusableAcrossRuns(t *testing.T) {
	q := New(2)
	var count atomic.Int32
	task := func(ctx context.Context) error {
		count.Add(1)
		return nil
	}

	q.Add(task)
	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, int32(1), count.Load())

	// Work added after a prior Run resolved must still execute.
	q.Add(task)
	q.Add(task)
	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, int32(3), count.Load())
}

func TestReusableAfterFailure(t *testing.T) {
	q := New(2)
	boom := errors.New("boom")

	q.Add(func(ctx context.Context) error { return boom })
	require.ErrorIs(t, q.Run(context.Background()), boom)

	var ran atomic.Bool
	q.Add(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, q.Run(context.Background()))
	assert.True(t, ran.Load())
}
