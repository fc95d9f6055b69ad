// Package render is the boundary to the external diagram renderer: a service
// that turns Mermaid text into a visual element graph.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diagen/diagen/pkg/schema"
)

const (
	defaultTimeout     = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10MB
	maxErrorBodyLength = 2048
)

// Renderer accepts DSL text and returns the visual element graph, or a
// rendering error carrying a human-readable message. Implementations must be
// safe for concurrent use.
type Renderer interface {
	Render(ctx context.Context, mermaid string) (*schema.Scene, error)
}

// HTTPRenderer calls a renderer service over HTTP.
type HTTPRenderer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRenderer creates a renderer client for the given base URL.
func NewHTTPRenderer(baseURL string, timeout time.Duration) *HTTPRenderer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPRenderer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type renderRequest struct {
	Mermaid string `json:"mermaid"`
}

type renderFailure struct {
	Error string `json:"error"`
}

// Render posts the DSL text and decodes the returned scene. A rejection
// surfaces as RENDER_ERROR with the renderer's message and the literal text
// that failed; no partial scene is ever returned.
func (r *HTTPRenderer) Render(ctx context.Context, mermaid string) (*schema.Scene, error) {
	body, err := json.Marshal(renderRequest{Mermaid: mermaid})
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeRender, "failed to marshal render request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeRender, "failed to create render request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeRender, "renderer unreachable: %v", err).WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeRender, "failed to read renderer response").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := renderErrorMessage(raw, resp.StatusCode)
		return nil, schema.NewError(schema.ErrCodeRender, msg).
			WithDetails(map[string]any{"mermaid": mermaid})
	}

	var scene schema.Scene
	if err := json.Unmarshal(raw, &scene); err != nil {
		return nil, schema.NewError(schema.ErrCodeRender, "renderer returned an undecodable scene").WithCause(err)
	}
	return &scene, nil
}

// renderErrorMessage extracts the renderer's message from a failure body,
// falling back to the raw body snippet.
func renderErrorMessage(raw []byte, status int) string {
	var failure renderFailure
	if err := json.Unmarshal(raw, &failure); err == nil && failure.Error != "" {
		return failure.Error
	}
	snippet := string(raw)
	if len(snippet) > maxErrorBodyLength {
		snippet = snippet[:maxErrorBodyLength]
	}
	return fmt.Sprintf("renderer returned %d: %s", status, snippet)
}
