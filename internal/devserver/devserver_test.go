package devserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	dist := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dist, "main.js"), []byte("console.log(1)"), 0o644))

	s := New(Options{DistDir: dist})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServesBundles(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/main.js")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestInvalidateEventReachesSubscribers(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts)

	// The subscriber registers during the upgrade, before Dial returns,
	// so the broadcast below cannot race it.
	s.NotifyInvalidate("/proj/src/a.js")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "invalidate", event.Type)
	assert.Equal(t, "/proj/src/a.js", event.Path)
}

func TestBuiltEventHasNoPath(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts)

	s.NotifyBuilt()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "built", event.Type)
	assert.Empty(t, event.Path)
}

func TestConcurrentBroadcastsAreSerialized(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts)

	// Invalidation events come from the engine's watch goroutine while
	// build notifications come from the build loop; both must be able to
	// broadcast at once without interleaving frames.
	const perSender = 25
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < perSender; i++ {
			s.NotifyInvalidate("/proj/src/a.js")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perSender; i++ {
			s.NotifyBuilt()
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	counts := map[string]int{}
	for i := 0; i < 2*perSender; i++ {
		var event Event
		require.NoError(t, conn.ReadJSON(&event))
		counts[event.Type]++
	}
	wg.Wait()
	assert.Equal(t, perSender, counts["invalidate"])
	assert.Equal(t, perSender, counts["built"])
}

func TestBroadcastSurvivesClosedSubscriber(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dial(t, ts)
	keeper := dial(t, ts)

	require.NoError(t, conn.Close())
	// Give the read loop a moment to notice the close.
	time.Sleep(50 * time.Millisecond)

	s.NotifyBuilt()
	s.NotifyBuilt()

	require.NoError(t, keeper.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, keeper.ReadJSON(&event))
	assert.Equal(t, "built", event.Type)
}
