package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/diagen/diagen/internal/graph"
	"github.com/diagen/diagen/internal/logging"
	"github.com/diagen/diagen/internal/mermaid"
	"github.com/diagen/diagen/internal/store"
)

// handleGenerate creates a diagram from a prompt. MCP has no delta channel,
// so the stream is drained and only the final text returned.
func (s *DiagenServer) handleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError("prompt is required"), nil
	}

	ctx = logging.WithConversionID(ctx, uuid.New().String())
	text, genErr := s.ai.GenerateStream(ctx, prompt, nil)
	if genErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %v", genErr)), nil
	}

	s.persist(ctx, &store.Conversion{
		ID:        logging.ConversionID(ctx),
		Source:    store.SourceGenerate,
		Prompt:    prompt,
		Mermaid:   text,
		Model:     s.ai.Model(),
		CreatedAt: time.Now().UTC(),
	})

	return marshalResult(map[string]any{"mermaid": text})
}

// handleOptimize reworks existing diagram text.
func (s *DiagenServer) handleOptimize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mermaidText, err := req.RequireString("mermaid")
	if err != nil {
		return mcp.NewToolResultError("mermaid is required"), nil
	}
	instructions, err := req.RequireString("instructions")
	if err != nil {
		return mcp.NewToolResultError("instructions is required"), nil
	}

	ctx = logging.WithConversionID(ctx, uuid.New().String())
	text, optErr := s.ai.OptimizeStream(ctx, mermaidText, instructions, nil)
	if optErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("optimization failed: %v", optErr)), nil
	}

	s.persist(ctx, &store.Conversion{
		ID:        logging.ConversionID(ctx),
		Source:    store.SourceOptimize,
		Prompt:    instructions,
		Mermaid:   text,
		Model:     s.ai.Model(),
		CreatedAt: time.Now().UTC(),
	})

	return marshalResult(map[string]any{"mermaid": text})
}

// handleConvert turns a scene document into Mermaid text.
func (s *DiagenServer) handleConvert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sceneRaw := mcp.ParseStringMap(req, "scene", nil)
	if sceneRaw == nil {
		return mcp.NewToolResultError("scene is required"), nil
	}
	variant, variantErr := mermaid.ParseVariant(req.GetString("variant", ""))
	if variantErr != nil {
		return mcp.NewToolResultError(variantErr.Error()), nil
	}

	sceneBytes, marshalErr := json.Marshal(sceneRaw)
	if marshalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid scene: %v", marshalErr)), nil
	}
	scene, decodeErr := s.validator.DecodeScene(sceneBytes)
	if decodeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid scene: %v", decodeErr)), nil
	}

	ctx = logging.WithConversionID(ctx, uuid.New().String())
	model := graph.Read(scene)
	text, emitErr := mermaid.Emit(model, variant)
	if emitErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("conversion failed: %v", emitErr)), nil
	}

	s.persist(ctx, &store.Conversion{
		ID:        logging.ConversionID(ctx),
		Source:    store.SourceConvert,
		Mermaid:   text,
		Variant:   string(variant),
		CreatedAt: time.Now().UTC(),
	})

	return marshalResult(map[string]any{
		"mermaid": text,
		"variant": string(variant),
		"nodes":   len(model.Nodes),
		"edges":   len(model.Edges),
	})
}

// handleRender turns Mermaid text into a scene via the renderer service.
func (s *DiagenServer) handleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mermaidText, err := req.RequireString("mermaid")
	if err != nil {
		return mcp.NewToolResultError("mermaid is required"), nil
	}

	scene, renderErr := s.renderer.Render(ctx, mermaidText)
	if renderErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", renderErr)), nil
	}
	return marshalResult(scene)
}

// handleHistory lists persisted conversions.
func (s *DiagenServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.ConversionFilter{
		Source: req.GetString("source", ""),
		Limit:  int(mcp.ParseInt64(req, "limit", 20)),
	}

	conversions, err := s.store.ListConversions(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"conversions": conversions})
}

// persist writes a conversion to history, logging and swallowing failures:
// the caller already has its result.
func (s *DiagenServer) persist(ctx context.Context, c *store.Conversion) {
	if s.store == nil {
		return
	}
	if err := s.store.CreateConversion(ctx, c); err != nil {
		s.logger.ErrorContext(ctx, "persist conversion failed", "conversion_id", c.ID, "error", err)
	}
}

// marshalResult serializes a value as an indented-JSON text result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
