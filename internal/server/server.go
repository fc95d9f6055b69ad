// Package server exposes the diagram service over HTTP: prompt-to-diagram
// generation, diagram optimization, scene-to-Mermaid conversion, rendering,
// and conversion history.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/diagen/diagen/internal/logging"
	"github.com/diagen/diagen/internal/render"
	"github.com/diagen/diagen/internal/store"
	"github.com/diagen/diagen/internal/stream"
	"github.com/diagen/diagen/internal/validation"
)

// Generator is the upstream model client surface the server needs.
type Generator interface {
	GenerateStream(ctx context.Context, prompt string, sink stream.DeltaSink) (string, error)
	OptimizeStream(ctx context.Context, mermaid, instructions string, sink stream.DeltaSink) (string, error)
	Model() string
}

// Deps holds the dependencies for the API server.
type Deps struct {
	Store     store.Store
	AI        Generator
	Renderer  render.Renderer
	Validator *validation.SceneValidator
	Logger    *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	deps Deps
}

// NewServer creates an API server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler for the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Streaming endpoints.
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/optimize", s.handleOptimize)

	// Synchronous conversions.
	mux.HandleFunc("POST /api/convert", s.handleConvert)
	mux.HandleFunc("POST /api/render", s.handleRender)

	// History.
	mux.HandleFunc("GET /api/history", s.handleListHistory)
	mux.HandleFunc("GET /api/history/{id}", s.handleGetHistory)
	mux.HandleFunc("DELETE /api/history/{id}", s.handleDeleteHistory)

	return s.withRequestID(mux)
}

// withRequestID tags every request with a correlation ID, echoed back in the
// X-Request-ID header and carried in the context for logging.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
