package preview

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/FocuswithJustin/qmdptx/internal/logging"
	"github.com/FocuswithJustin/qmdptx/internal/pipeline"
)

const shutdownTimeout = 5 * time.Second

type document struct {
	output  []byte
	updated time.Time
}

// Server keeps the latest output of every chapter and serves it.
type Server struct {
	hub *Hub

	mu   sync.RWMutex
	docs map[string]document
}

// NewServer creates a server publishing to hub.
func NewServer(hub *Hub) *Server {
	return &Server{hub: hub, docs: make(map[string]document)}
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Update records a pipeline result and publishes it. Failed results keep
// the previous output.
func (s *Server) Update(res pipeline.Result) {
	ev := Event{DocID: res.Chapter.ID, Output: res.Chapter.Output}
	if res.Err != nil {
		ev.Type = "error"
		ev.Message = res.Err.Error()
		s.hub.Publish(ev)
		return
	}

	s.mu.Lock()
	s.docs[res.Chapter.ID] = document{output: res.Output, updated: time.Now()}
	s.mu.Unlock()

	ev.Type = res.Status.String()
	ev.Bytes = len(res.Output)
	ev.Problems = len(res.Problems)
	s.hub.Publish(ev)
}

// Document returns the latest output for id.
func (s *Server) Document(id string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc.output, ok
}

// Handler returns the preview routes wrapped in the logging and security
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", s.hub)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /docs", s.handleIndex)
	mux.HandleFunc("GET /docs/{id}", s.handleDocument)

	return logging.CombinedMiddleware(SecurityHeaders(PreviewCSPConfig(), mux))
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	logging.ServerStartup("preview", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	n := len(s.docs)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"documents": n,
		"clients":   s.hub.ClientCount(),
	})
}

type indexEntry struct {
	ID      string    `json:"id"`
	Bytes   int       `json:"bytes"`
	Updated time.Time `json:"updated"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	entries := make([]indexEntry, 0, len(s.docs))
	for id, doc := range s.docs {
		entries = append(entries, indexEntry{ID: id, Bytes: len(doc.output), Updated: doc.updated})
	}
	s.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	out, ok := s.Document(id)
	if !ok {
		http.Error(w, "document not found: "+id, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write(out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}
