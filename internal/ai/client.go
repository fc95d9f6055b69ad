// Package ai is the client for the upstream chat-completion service that
// turns prompts into Mermaid text. Streamed responses arrive framed as bare
// JSON objects, one per logical message.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/diagen/diagen/internal/stream"
	"github.com/diagen/diagen/pkg/schema"
)

const (
	defaultTimeout  = 5 * time.Minute
	maxErrorBody    = 4096
	defaultModel    = "gpt-4o-mini"
	completionsPath = "/v1/chat/completions"
)

// Message is one chat turn sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the upstream call payload.
type chatRequest struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model"`
	Stream   bool      `json:"stream"`
}

// Config configures the upstream client. Timeout bounds the whole exchange;
// retry and backoff policy belongs to the calling layer, not here.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client calls the upstream service. Safe for concurrent use; every streamed
// exchange owns its own consumer state.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates an upstream client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// GenerateStream asks the model to produce a diagram for the prompt,
// invoking sink for each content delta, and returns the final Mermaid text
// with any enclosing code fence stripped.
func (c *Client) GenerateStream(ctx context.Context, prompt string, sink stream.DeltaSink) (string, error) {
	return c.streamCompletion(ctx, []Message{
		{Role: "system", Content: generateSystemPrompt},
		{Role: "user", Content: prompt},
	}, sink)
}

// OptimizeStream asks the model to rework existing Mermaid text according to
// the instructions. Same wire contract as GenerateStream.
func (c *Client) OptimizeStream(ctx context.Context, mermaid, instructions string, sink stream.DeltaSink) (string, error) {
	return c.streamCompletion(ctx, []Message{
		{Role: "system", Content: optimizeSystemPrompt},
		{Role: "user", Content: optimizeUserPrompt(mermaid, instructions)},
	}, sink)
}

// Generate is the traditional non-streaming path. The response body is a
// single terminal frame with the same shape the stream ends with; it shares
// the stream decoder rather than defining a second contract.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := c.exchange(ctx, chatRequest{
		Messages: []Message{
			{Role: "system", Content: generateSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Model:  c.model,
		Stream: false,
	})
	if err != nil {
		return "", err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", schema.NewError(schema.ErrCodeUpstream, "failed to read completion response").WithCause(err)
	}

	event, ok := stream.DecodeGeneration(string(raw))
	if !ok {
		return "", schema.NewError(schema.ErrCodeParse, "completion response matched no known shape").
			WithDetails(map[string]any{"body": truncate(string(raw), maxErrorBody)})
	}
	switch event.Kind {
	case schema.EventFinal:
		return stream.StripFence(event.Content), nil
	case schema.EventError:
		return "", schema.NewError(schema.ErrCodeProtocol, event.Message)
	}
	return "", schema.NewError(schema.ErrCodeParse, "completion response carried no terminal frame")
}

// streamCompletion performs one streamed exchange and drives it through the
// stream consumer.
func (c *Client) streamCompletion(ctx context.Context, messages []Message, sink stream.DeltaSink) (string, error) {
	body, err := c.exchange(ctx, chatRequest{Messages: messages, Model: c.model, Stream: true})
	if err != nil {
		return "", err
	}
	defer body.Close()

	consumer := stream.NewConsumer(stream.FramingJSON, c.logger)
	return consumer.Consume(ctx, body, sink)
}

// exchange issues the HTTP call and returns the response body on success.
func (c *Client) exchange(ctx context.Context, payload chatRequest) (io.ReadCloser, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeUpstream, "failed to marshal completion request").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(raw))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeUpstream, "failed to create completion request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeUpstream, "completion request failed: %v", err).WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, schema.NewErrorf(schema.ErrCodeUpstream, "upstream returned %d", resp.StatusCode).
			WithDetails(map[string]any{"body": string(snippet)})
	}
	return resp.Body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
