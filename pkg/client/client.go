// Package client is the Go client for the diagen HTTP API. Streaming
// endpoints deliver content deltas through a callback and return the final
// diagram text.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diagen/diagen/internal/stream"
	"github.com/diagen/diagen/pkg/schema"
)

const defaultTimeout = 5 * time.Minute

// DeltaFunc receives incremental diagram text in emission order. It runs
// synchronously on the reading goroutine and must not block.
type DeltaFunc func(text string)

// Conversion is one history entry as returned by the API.
type Conversion struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Prompt    string    `json:"prompt,omitempty"`
	Mermaid   string    `json:"mermaid"`
	Variant   string    `json:"variant"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ConvertResult is the outcome of a scene-to-Mermaid conversion.
type ConvertResult struct {
	Mermaid string `json:"mermaid"`
	Variant string `json:"variant"`
	Nodes   int    `json:"nodes"`
	Edges   int    `json:"edges"`
}

// Client talks to a diagen server. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for stream diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate streams a prompt-to-diagram generation. Deltas arrive through fn
// as the model produces them; the returned string is the complete diagram.
func (c *Client) Generate(ctx context.Context, prompt string, fn DeltaFunc) (string, error) {
	body, err := c.post(ctx, "/api/generate", map[string]string{"prompt": prompt})
	if err != nil {
		return "", err
	}
	defer body.Close()
	return c.consume(ctx, stream.FramingJSON, body, fn)
}

// Optimize streams a rework of existing diagram text according to the
// instructions. Same delivery contract as Generate.
func (c *Client) Optimize(ctx context.Context, mermaid, instructions string, fn DeltaFunc) (string, error) {
	body, err := c.post(ctx, "/api/optimize", map[string]string{
		"mermaid":      mermaid,
		"instructions": instructions,
	})
	if err != nil {
		return "", err
	}
	defer body.Close()
	return c.consume(ctx, stream.FramingSSE, body, fn)
}

// Convert turns a raw scene document into Mermaid text. variant may be empty
// for the default flowchart output.
func (c *Client) Convert(ctx context.Context, scene json.RawMessage, variant string) (*ConvertResult, error) {
	body, err := c.post(ctx, "/api/convert", map[string]any{
		"scene":   scene,
		"variant": variant,
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var result ConvertResult
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		return nil, schema.NewError(schema.ErrCodeParse, "failed to decode convert response").WithCause(err)
	}
	return &result, nil
}

// Render turns Mermaid text into a visual scene.
func (c *Client) Render(ctx context.Context, mermaid string) (*schema.Scene, error) {
	body, err := c.post(ctx, "/api/render", map[string]string{"mermaid": mermaid})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var scene schema.Scene
	if err := json.NewDecoder(body).Decode(&scene); err != nil {
		return nil, schema.NewError(schema.ErrCodeParse, "failed to decode scene").WithCause(err)
	}
	return &scene, nil
}

// History lists persisted conversions, newest first. source narrows to one
// origin; limit 0 uses the server default.
func (c *Client) History(ctx context.Context, source string, limit int) ([]*Conversion, error) {
	path := "/api/history"
	params := make([]string, 0, 2)
	if source != "" {
		params = append(params, "source="+source)
	}
	if limit > 0 {
		params = append(params, "limit="+strconv.Itoa(limit))
	}
	if len(params) > 0 {
		path += "?" + strings.Join(params, "&")
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp struct {
		Conversions []*Conversion `json:"conversions"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, schema.NewError(schema.ErrCodeParse, "failed to decode history response").WithCause(err)
	}
	return resp.Conversions, nil
}

// GetConversion fetches one history entry by ID.
func (c *Client) GetConversion(ctx context.Context, id string) (*Conversion, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/history/"+id, nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var conv Conversion
	if err := json.NewDecoder(body).Decode(&conv); err != nil {
		return nil, schema.NewError(schema.ErrCodeParse, "failed to decode conversion").WithCause(err)
	}
	return &conv, nil
}

// DeleteConversion removes one history entry by ID.
func (c *Client) DeleteConversion(ctx context.Context, id string) error {
	body, err := c.do(ctx, http.MethodDelete, "/api/history/"+id, nil)
	if err != nil {
		return err
	}
	return body.Close()
}

func (c *Client) consume(ctx context.Context, framing stream.Framing, body io.Reader, fn DeltaFunc) (string, error) {
	var sink stream.DeltaSink
	if fn != nil {
		sink = func(text string) { fn(text) }
	}
	return stream.NewConsumer(framing, c.logger).Consume(ctx, body, sink)
}

func (c *Client) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	return c.do(ctx, http.MethodPost, path, payload)
}

// do issues one request and returns the response body, translating non-2xx
// responses into the structured errors the server emits.
func (c *Client) do(ctx context.Context, method, path string, payload any) (io.ReadCloser, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "failed to marshal request").WithCause(err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "failed to create request").WithCause(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeUpstream, "request failed: %v", err).WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp.Body, nil
}

// decodeAPIError reconstructs the server's structured error from a failure
// response body.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var derr schema.DiagenError
	if err := json.Unmarshal(raw, &derr); err == nil && derr.Code != "" {
		return &derr
	}
	return schema.NewError(schema.ErrCodeUpstream,
		fmt.Sprintf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
}
