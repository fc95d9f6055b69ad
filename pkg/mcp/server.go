// Package mcp exposes the diagram service as MCP tools over stdio, so agents
// can generate, optimize, and convert diagrams without speaking the HTTP API.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/diagen/diagen/internal/render"
	"github.com/diagen/diagen/internal/store"
	"github.com/diagen/diagen/internal/stream"
	"github.com/diagen/diagen/internal/validation"
)

// Generator is the upstream model client surface the tools need.
type Generator interface {
	GenerateStream(ctx context.Context, prompt string, sink stream.DeltaSink) (string, error)
	OptimizeStream(ctx context.Context, mermaid, instructions string, sink stream.DeltaSink) (string, error)
	Model() string
}

// DiagenServerDeps holds the dependencies for creating a DiagenServer.
type DiagenServerDeps struct {
	AI        Generator
	Store     store.Store
	Renderer  render.Renderer
	Validator *validation.SceneValidator
	Logger    *slog.Logger
}

// DiagenServer wraps an MCP server with diagram tool handlers.
type DiagenServer struct {
	ai        Generator
	store     store.Store
	renderer  render.Renderer
	validator *validation.SceneValidator
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewDiagenServer creates a new DiagenServer with all 5 tools registered.
func NewDiagenServer(deps DiagenServerDeps) *DiagenServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &DiagenServer{
		ai:        deps.AI,
		store:     deps.Store,
		renderer:  deps.Renderer,
		validator: deps.Validator,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"diagen",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Diagen turns text into Mermaid diagrams. Use diagen.generate to create a diagram from a prompt, diagen.optimize to rework existing Mermaid text, diagen.convert to turn a visual scene into Mermaid, diagen.render to turn Mermaid into a scene, and diagen.history to list past conversions."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *DiagenServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *DiagenServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 5 registered MCP tools as ServerTool entries.
func (s *DiagenServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: generateTool(), Handler: s.handleGenerate},
		{Tool: optimizeTool(), Handler: s.handleOptimize},
		{Tool: convertTool(), Handler: s.handleConvert},
		{Tool: renderTool(), Handler: s.handleRender},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
}

// --- Tool definitions ---

func generateTool() mcp.Tool {
	return mcp.NewTool("diagen.generate",
		mcp.WithDescription("Generate a Mermaid diagram from a natural-language description"),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Description of the diagram to create")),
	)
}

func optimizeTool() mcp.Tool {
	return mcp.NewTool("diagen.optimize",
		mcp.WithDescription("Rework existing Mermaid diagram text according to instructions"),
		mcp.WithString("mermaid", mcp.Required(), mcp.Description("Current Mermaid diagram text")),
		mcp.WithString("instructions", mcp.Required(), mcp.Description("How the diagram should change")),
	)
}

func convertTool() mcp.Tool {
	return mcp.NewTool("diagen.convert",
		mcp.WithDescription("Convert a visual scene (element graph) into Mermaid diagram text"),
		mcp.WithObject("scene", mcp.Required(), mcp.Description("Scene document with an elements array")),
		mcp.WithString("variant",
			mcp.Enum("flowchart", "class", "sequence"),
			mcp.Description("Target diagram syntax (default: flowchart)"),
		),
	)
}

func renderTool() mcp.Tool {
	return mcp.NewTool("diagen.render",
		mcp.WithDescription("Render Mermaid diagram text into a visual scene"),
		mcp.WithString("mermaid", mcp.Required(), mcp.Description("Mermaid diagram text to render")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("diagen.history",
		mcp.WithDescription("List past conversions, newest first"),
		mcp.WithString("source",
			mcp.Enum("generate", "optimize", "convert"),
			mcp.Description("Only list conversions from this origin"),
		),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries to return (default: 20)")),
	)
}
