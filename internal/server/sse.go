package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/diagen/diagen/internal/logging"
	"github.com/diagen/diagen/internal/store"
	"github.com/diagen/diagen/pkg/schema"
)

// handleGenerate streams a prompt-to-diagram generation to the client as a
// sequence of bare JSON objects: chunk frames followed by one terminal frame.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, schema.NewErrorf(schema.ErrCodeValidation, "invalid JSON: %v", err))
		return
	}
	if body.Prompt == "" {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "prompt is required"))
		return
	}

	ctx := logging.WithConversionID(r.Context(), uuid.New().String())
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, schema.NewError(schema.ErrCodeUpstream, "streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	mermaid, err := s.deps.AI.GenerateStream(ctx, body.Prompt, func(text string) {
		s.writeGenerationFrame(w, schema.GenerationFrame{Chunk: text})
		flusher.Flush()
	})
	if err != nil {
		s.deps.Logger.ErrorContext(ctx, "generation failed", slog.String("error", err.Error()))
		s.writeGenerationFrame(w, schema.GenerationFrame{Error: errMessage(err)})
		flusher.Flush()
		return
	}

	s.writeGenerationFrame(w, schema.GenerationFrame{MermaidCode: mermaid, Done: true})
	flusher.Flush()

	s.persist(ctx, &store.Conversion{
		ID:        logging.ConversionID(ctx),
		Source:    store.SourceGenerate,
		Prompt:    body.Prompt,
		Mermaid:   mermaid,
		Model:     s.deps.AI.Model(),
		CreatedAt: time.Now().UTC(),
	})
}

// handleOptimize streams a diagram rework to the client over Server-Sent
// Events: typed chunk frames followed by one final or error frame.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mermaid      string `json:"mermaid"`
		Instructions string `json:"instructions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, schema.NewErrorf(schema.ErrCodeValidation, "invalid JSON: %v", err))
		return
	}
	if body.Mermaid == "" {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "mermaid is required"))
		return
	}
	if body.Instructions == "" {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "instructions is required"))
		return
	}

	ctx := logging.WithConversionID(r.Context(), uuid.New().String())
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, schema.NewError(schema.ErrCodeUpstream, "streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	optimized, err := s.deps.AI.OptimizeStream(ctx, body.Mermaid, body.Instructions, func(text string) {
		s.writeSSEFrame(w, schema.OptimizeFrame{Type: schema.OptimizeFrameChunk, Data: text})
		flusher.Flush()
	})
	if err != nil {
		s.deps.Logger.ErrorContext(ctx, "optimization failed", slog.String("error", err.Error()))
		s.writeSSEFrame(w, schema.OptimizeFrame{Type: schema.OptimizeFrameError, Message: errMessage(err)})
		flusher.Flush()
		return
	}

	s.writeSSEFrame(w, schema.OptimizeFrame{Type: schema.OptimizeFrameFinal, OK: true, Data: optimized})
	flusher.Flush()

	s.persist(ctx, &store.Conversion{
		ID:        logging.ConversionID(ctx),
		Source:    store.SourceOptimize,
		Prompt:    body.Instructions,
		Mermaid:   optimized,
		Model:     s.deps.AI.Model(),
		CreatedAt: time.Now().UTC(),
	})
}

// writeGenerationFrame emits one frame of the generation stream, one JSON
// object per line.
func (s *Server) writeGenerationFrame(w http.ResponseWriter, frame schema.GenerationFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.deps.Logger.Error("marshal generation frame", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintf(w, "%s\n", data)
}

// writeSSEFrame emits one data: event of the optimization stream.
func (s *Server) writeSSEFrame(w http.ResponseWriter, frame schema.OptimizeFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.deps.Logger.Error("marshal sse frame", slog.String("error", err.Error()))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
