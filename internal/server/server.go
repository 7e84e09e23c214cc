// Package server implements the preview server used by watch mode: it
// serves the latest assembled artifact, notifies connected browsers over
// server-sent events when a new pass completes, and exposes health and
// Prometheus metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mbolt/svgpress/pkg/export"
	"github.com/mbolt/svgpress/pkg/flatten"
)

// Server is the preview HTTP server.
type Server struct {
	Addr string

	router *chi.Mux
	server *http.Server
	events *broadcaster

	mu     sync.RWMutex
	latest *export.Result
}

// NewServer creates a preview server. The Prometheus registry gathers the
// process's pass metrics; pass nil to serve an empty metrics page.
func NewServer(addr string, reg *prom.Registry) *Server {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	s := &Server{
		Addr:   addr,
		router: chi.NewRouter(),
		events: newBroadcaster(),
	}
	s.setupRoutes(reg)
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(reg *prom.Registry) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/", s.handleIndex)
	s.router.Get("/artifact.svg", s.handleArtifact)
	s.router.Get("/module.json", s.handleModule)
	s.router.Get("/pass", s.handlePass)
	s.router.Get("/events", s.handleEvents)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Publish installs the result of a completed pass and notifies connected
// preview clients.
func (s *Server) Publish(res *export.Result) {
	s.mu.Lock()
	s.latest = res
	s.mu.Unlock()
	s.events.publish(res.PassID)
}

func (s *Server) result() *export.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// indexPage embeds the artifact and reloads it whenever the event stream
// reports a new pass.
const indexPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>svgpress preview</title>
<style>body{margin:0;background:#444}img{display:block;margin:0 auto;box-shadow:0 0 12px rgba(0,0,0,.5)}</style>
</head>
<body>
<img id="doc" src="/artifact.svg" alt="preview">
<script>
new EventSource("/events").onmessage = function () {
  document.getElementById("doc").src = "/artifact.svg?t=" + Date.now();
};
</script>
</body>
</html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	res := s.result()
	if res == nil || len(res.Artifact) == 0 {
		http.Error(w, "no artifact yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(res.Artifact)
}

func (s *Server) handleModule(w http.ResponseWriter, r *http.Request) {
	res := s.result()
	if res == nil || res.Module == nil {
		http.Error(w, "no module yet", http.StatusNotFound)
		return
	}
	data, err := flatten.MarshalModule(res.Module)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// handlePass reports the latest pass's stats and diagnostics.
func (s *Server) handlePass(w http.ResponseWriter, r *http.Request) {
	res := s.result()
	if res == nil {
		http.Error(w, "no pass yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"pass_id":     res.PassID,
		"module_hash": res.ModuleHash,
		"stats":       res.Stats,
		"cache_info":  res.CacheInfo,
		"diagnostics": res.Diagnostics,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.events.subscribe()
	defer unsubscribe()

	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case passID, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %q\n\n", passID)
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
