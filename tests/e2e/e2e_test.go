package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagen/diagen/internal/ai"
	"github.com/diagen/diagen/internal/render"
	"github.com/diagen/diagen/internal/server"
	"github.com/diagen/diagen/internal/store"
	"github.com/diagen/diagen/internal/validation"
	"github.com/diagen/diagen/pkg/client"
	"github.com/diagen/diagen/pkg/schema"
)

// --- Test harness ---

// harness wires the whole service against a fake upstream model and a fake
// renderer, and exposes it through the public API client.
type harness struct {
	t      *testing.T
	store  *store.LibSQLStore
	client *client.Client

	upstream *fakeUpstream
}

// fakeUpstream impersonates the chat-completion service. Responses are
// streamed as chunk frames followed by a terminal frame.
type fakeUpstream struct {
	chunks  []string
	final   string
	failMsg string
}

func (u *fakeUpstream) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, c := range u.chunks {
			frame, _ := json.Marshal(schema.GenerationFrame{Chunk: c})
			_, _ = w.Write(frame)
		}
		if u.failMsg != "" {
			frame, _ := json.Marshal(schema.GenerationFrame{Error: u.failMsg})
			_, _ = w.Write(frame)
			return
		}
		frame, _ := json.Marshal(schema.GenerationFrame{MermaidCode: u.final, Done: true})
		_, _ = w.Write(frame)
	})
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	validator, err := validation.NewSceneValidator()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	upstream := &fakeUpstream{}
	upstreamSrv := httptest.NewServer(upstream.handler())
	t.Cleanup(upstreamSrv.Close)

	rendererSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"elements":[{"id":"e1","type":"rectangle"},{"id":"e2","type":"rectangle"}]}`)
	}))
	t.Cleanup(rendererSrv.Close)

	apiSrv := httptest.NewServer(server.NewServer(server.Deps{
		Store:     s,
		AI:        ai.NewClient(ai.Config{BaseURL: upstreamSrv.URL, Model: "e2e-model"}, logger),
		Renderer:  render.NewHTTPRenderer(rendererSrv.URL, 0),
		Validator: validator,
		Logger:    logger,
	}).Handler())
	t.Cleanup(apiSrv.Close)

	return &harness{
		t:        t,
		store:    s,
		client:   client.New(apiSrv.URL, client.WithLogger(logger)),
		upstream: upstream,
	}
}

// --- Tests ---

func TestGenerateRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.upstream.chunks = []string{"flowchart TD", "\n    A --> B"}
	h.upstream.final = "flowchart TD\n    A --> B"

	var deltas []string
	got, err := h.client.Generate(context.Background(), "a login flow", func(text string) {
		deltas = append(deltas, text)
	})
	require.NoError(t, err)
	assert.Equal(t, "flowchart TD\n    A --> B", got)
	assert.Equal(t, []string{"flowchart TD", "\n    A --> B"}, deltas)

	history, err := h.client.History(context.Background(), store.SourceGenerate, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "a login flow", history[0].Prompt)
	assert.Equal(t, "e2e-model", history[0].Model)
}

func TestGenerateUpstreamFailureRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.upstream.chunks = []string{"flow"}
	h.upstream.failMsg = "model overloaded"

	_, err := h.client.Generate(context.Background(), "anything", nil)
	require.Error(t, err)

	var derr *schema.DiagenError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, schema.ErrCodeProtocol, derr.Code)
	assert.Equal(t, "model overloaded", derr.Message)

	history, err := h.client.History(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, history, "failed generations leave no history")
}

func TestOptimizeRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.upstream.chunks = []string{"flowchart TD\n    A --> B", "\n    B --> A"}
	h.upstream.final = "flowchart TD\n    A --> B\n    B --> A"

	var deltas []string
	got, err := h.client.Optimize(context.Background(),
		"flowchart TD\n    A --> B", "add a retry edge",
		func(text string) { deltas = append(deltas, text) })
	require.NoError(t, err)
	assert.Equal(t, "flowchart TD\n    A --> B\n    B --> A", got)
	assert.Len(t, deltas, 2)

	history, err := h.client.History(context.Background(), store.SourceOptimize, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "add a retry edge", history[0].Prompt)
}

func TestConvertRoundTrip(t *testing.T) {
	h := newHarness(t)

	scene := json.RawMessage(`{
		"elements": [
			{"id": "r1", "type": "rectangle", "backgroundColor": "#fde68a", "strokeColor": "#d97706"},
			{"id": "r2", "type": "diamond"},
			{"id": "a1", "type": "arrow",
			 "startBinding": {"elementId": "r1"},
			 "endBinding": {"elementId": "r2"}}
		]
	}`)

	result, err := h.client.Convert(context.Background(), scene, "flowchart")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Nodes)
	assert.Equal(t, 1, result.Edges)
	assert.Contains(t, result.Mermaid, "flowchart TD")
	assert.Contains(t, result.Mermaid, ":::style0")
	assert.Contains(t, result.Mermaid, "classDef style0")

	conv, err := h.client.History(context.Background(), store.SourceConvert, 0)
	require.NoError(t, err)
	require.Len(t, conv, 1)
	assert.Equal(t, "flowchart", conv[0].Variant)
}

func TestRenderRoundTrip(t *testing.T) {
	h := newHarness(t)

	scene, err := h.client.Render(context.Background(), "flowchart TD\n    A --> B")
	require.NoError(t, err)
	assert.Len(t, scene.Elements, 2)
}

func TestHistoryLifecycle(t *testing.T) {
	h := newHarness(t)
	h.upstream.final = "flowchart TD"

	_, err := h.client.Generate(context.Background(), "first", nil)
	require.NoError(t, err)
	_, err = h.client.Generate(context.Background(), "second", nil)
	require.NoError(t, err)

	history, err := h.client.History(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "second", history[0].Prompt, "newest first")

	conv, err := h.client.GetConversion(context.Background(), history[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "flowchart TD", conv.Mermaid)

	require.NoError(t, h.client.DeleteConversion(context.Background(), conv.ID))

	_, err = h.client.GetConversion(context.Background(), conv.ID)
	var derr *schema.DiagenError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, schema.ErrCodeNotFound, derr.Code)
}
