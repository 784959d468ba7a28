// Package devserver serves built bundles during development and pushes
// invalidation events to connected clients over a websocket, so a page
// can reload the moment a rebuild lands.
package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/packden/packden/internal/ctxlog"
)

// Event is one message pushed to /events subscribers.
type Event struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// Options configures a dev server.
type Options struct {
	// Addr is the listen address, e.g. ":1234".
	Addr string
	// DistDir is the directory of written bundles served at /.
	DistDir string
}

// Server is the development HTTP server.
type Server struct {
	addr    string
	distDir string

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	// writeMu serializes broadcasts: gorilla allows at most one writer
	// per connection, and invalidation and build notifications arrive
	// from different goroutines.
	writeMu sync.Mutex
}

// New creates a dev server. Call ListenAndServe (or mount Handler) to
// start serving.
func New(opts Options) *Server {
	return &Server{
		addr:    opts.Addr,
		distDir: opts.DistDir,
		upgrader: websocket.Upgrader{
			// The server binds locally during development; any page may
			// connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP surface: bundle files at /, a health probe at
// /healthz and the event stream at /events.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/events", s.handleEvents)
	mux.Handle("/", http.FileServer(http.Dir(s.distDir)))
	return mux
}

// ListenAndServe serves until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Dev server listening.", "addr", s.addr, "dist", s.distDir)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed.", "error", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	logger.Debug("Event subscriber connected.", "remote", conn.RemoteAddr().String())

	// The read loop exists only to notice the peer going away.
	go func() {
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Broadcast pushes one event to every connected subscriber. Connections
// that fail to accept the write are dropped. Safe for concurrent use.
func (s *Server) Broadcast(event Event) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, c := range conns {
		if err := c.WriteJSON(event); err != nil {
			s.drop(c)
		}
	}
}

// NotifyInvalidate tells subscribers a source file changed and a rebuild
// is underway.
func (s *Server) NotifyInvalidate(path string) {
	s.Broadcast(Event{Type: "invalidate", Path: path})
}

// NotifyBuilt tells subscribers a rebuild finished and bundles are fresh.
func (s *Server) NotifyBuilt() {
	s.Broadcast(Event{Type: "built"})
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	_, known := s.clients[conn]
	delete(s.clients, conn)
	s.mu.Unlock()
	if known {
		_ = conn.Close()
	}
}
