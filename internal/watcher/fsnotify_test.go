package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFSDeliversWriteEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(path, []byte("before"), 0o644))

	w, err := NewFS()
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.Watch(path))
	require.NoError(t, os.WriteFile(path, []byte("after"), 0o644))

	require.Eventually(t, func() bool {
		select {
		case ev := <-w.Events():
			return ev.Path == path
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFSUnwatchStopsDelivery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(path, []byte("before"), 0o644))

	w, err := NewFS()
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.Watch(path))
	require.NoError(t, w.Unwatch(path))
	// Unwatching again is not an error.
	require.NoError(t, w.Unwatch(path))

	require.NoError(t, os.WriteFile(path, []byte("after"), 0o644))
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event after unwatch: %v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
