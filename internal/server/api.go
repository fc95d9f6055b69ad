package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/diagen/diagen/internal/graph"
	"github.com/diagen/diagen/internal/logging"
	"github.com/diagen/diagen/internal/mermaid"
	"github.com/diagen/diagen/internal/store"
	"github.com/diagen/diagen/pkg/schema"
)

// handleConvert turns a visual scene into Mermaid text for the requested
// diagram variant.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scene   json.RawMessage `json:"scene"`
		Variant string          `json:"variant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, schema.NewErrorf(schema.ErrCodeValidation, "invalid JSON: %v", err))
		return
	}
	if len(body.Scene) == 0 {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "scene is required"))
		return
	}

	variant, err := mermaid.ParseVariant(body.Variant)
	if err != nil {
		writeError(w, err)
		return
	}

	scene, err := s.deps.Validator.DecodeScene(body.Scene)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := logging.WithConversionID(r.Context(), uuid.New().String())
	model := graph.Read(scene)
	text, err := mermaid.Emit(model, variant)
	if err != nil {
		writeError(w, err)
		return
	}

	s.persist(ctx, &store.Conversion{
		ID:        logging.ConversionID(ctx),
		Source:    store.SourceConvert,
		Mermaid:   text,
		Variant:   string(variant),
		CreatedAt: time.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"mermaid": text,
		"variant": string(variant),
		"nodes":   len(model.Nodes),
		"edges":   len(model.Edges),
	})
}

// handleRender proxies Mermaid text to the renderer service and returns the
// resulting scene.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mermaid string `json:"mermaid"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, schema.NewErrorf(schema.ErrCodeValidation, "invalid JSON: %v", err))
		return
	}
	if body.Mermaid == "" {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "mermaid is required"))
		return
	}

	scene, err := s.deps.Renderer.Render(r.Context(), body.Mermaid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scene)
}

// handleListHistory lists persisted conversions, newest first.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	filter := store.ConversionFilter{
		Source: r.URL.Query().Get("source"),
		Limit:  queryInt(r, "limit", 50),
	}

	conversions, err := s.deps.Store.ListConversions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversions": conversions})
}

// handleGetHistory returns one conversion by ID.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Store.GetConversion(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteHistory deletes one conversion by ID.
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Store.DeleteConversion(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true", "id": id})
}
