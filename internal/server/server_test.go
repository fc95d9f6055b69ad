package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagen/diagen/internal/store"
	"github.com/diagen/diagen/internal/stream"
	"github.com/diagen/diagen/internal/validation"
	"github.com/diagen/diagen/pkg/schema"
)

type fakeAI struct {
	deltas []string
	result string
	err    error

	gotPrompt       string
	gotMermaid      string
	gotInstructions string
}

func (f *fakeAI) GenerateStream(_ context.Context, prompt string, sink stream.DeltaSink) (string, error) {
	f.gotPrompt = prompt
	return f.run(sink)
}

func (f *fakeAI) OptimizeStream(_ context.Context, mermaid, instructions string, sink stream.DeltaSink) (string, error) {
	f.gotMermaid = mermaid
	f.gotInstructions = instructions
	return f.run(sink)
}

func (f *fakeAI) Model() string { return "test-model" }

func (f *fakeAI) run(sink stream.DeltaSink) (string, error) {
	for _, d := range f.deltas {
		if sink != nil {
			sink(d)
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

type fakeRenderer struct {
	scene *schema.Scene
	err   error
}

func (f *fakeRenderer) Render(context.Context, string) (*schema.Scene, error) {
	return f.scene, f.err
}

func newTestServer(t *testing.T, ai *fakeAI, renderer *fakeRenderer) (*Server, store.Store) {
	t.Helper()

	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	validator, err := validation.NewSceneValidator()
	require.NoError(t, err)

	if ai == nil {
		ai = &fakeAI{}
	}
	if renderer == nil {
		renderer = &fakeRenderer{}
	}

	srv := NewServer(Deps{
		Store:     s,
		AI:        ai,
		Renderer:  renderer,
		Validator: validator,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return srv, s
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeFrames(t *testing.T, body string) []schema.GenerationFrame {
	t.Helper()
	var frames []schema.GenerationFrame
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if line == "" {
			continue
		}
		var frame schema.GenerationFrame
		require.NoError(t, json.Unmarshal([]byte(line), &frame))
		frames = append(frames, frame)
	}
	return frames
}

func TestGenerateEndpoint(t *testing.T) {
	ai := &fakeAI{
		deltas: []string{"flowchart", " TD"},
		result: "flowchart TD\n    A --> B",
	}
	srv, st := newTestServer(t, ai, nil)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/generate", map[string]string{"prompt": "a login flow"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a login flow", ai.gotPrompt)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	frames := decodeFrames(t, rec.Body.String())
	require.Len(t, frames, 3)
	assert.Equal(t, "flowchart", frames[0].Chunk)
	assert.False(t, frames[0].Done)
	assert.Equal(t, " TD", frames[1].Chunk)
	assert.True(t, frames[2].Done)
	assert.Equal(t, "flowchart TD\n    A --> B", frames[2].MermaidCode)

	conversions, err := st.ListConversions(context.Background(), store.ConversionFilter{Source: store.SourceGenerate})
	require.NoError(t, err)
	require.Len(t, conversions, 1)
	assert.Equal(t, "a login flow", conversions[0].Prompt)
	assert.Equal(t, "flowchart TD\n    A --> B", conversions[0].Mermaid)
	assert.Equal(t, "test-model", conversions[0].Model)
}

func TestGenerateEndpointMissingPrompt(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/generate", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var derr schema.DiagenError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &derr))
	assert.Equal(t, schema.ErrCodeValidation, derr.Code)
}

func TestGenerateEndpointUpstreamError(t *testing.T) {
	ai := &fakeAI{
		deltas: []string{"flow"},
		err:    schema.NewError(schema.ErrCodeProtocol, "model overloaded"),
	}
	srv, st := newTestServer(t, ai, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/generate", map[string]string{"prompt": "anything"})
	require.Equal(t, http.StatusOK, rec.Code, "failure after streaming starts travels in-band")

	frames := decodeFrames(t, rec.Body.String())
	require.Len(t, frames, 2)
	assert.Equal(t, "model overloaded", frames[1].Error)

	conversions, err := st.ListConversions(context.Background(), store.ConversionFilter{})
	require.NoError(t, err)
	assert.Empty(t, conversions, "failed generations are not persisted")
}

func TestOptimizeEndpoint(t *testing.T) {
	ai := &fakeAI{
		deltas: []string{"flowchart TD", "\n    A --> B"},
		result: "flowchart TD\n    A --> B\n    B --> A",
	}
	srv, st := newTestServer(t, ai, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/optimize", map[string]string{
		"mermaid":      "flowchart TD\n    A --> B",
		"instructions": "add a retry edge",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "add a retry edge", ai.gotInstructions)

	var frames []schema.OptimizeFrame
	for _, block := range strings.Split(rec.Body.String(), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		payload, ok := strings.CutPrefix(block, "data: ")
		require.True(t, ok, "every event is a data: frame")
		var frame schema.OptimizeFrame
		require.NoError(t, json.Unmarshal([]byte(payload), &frame))
		frames = append(frames, frame)
	}
	require.Len(t, frames, 3)
	assert.Equal(t, schema.OptimizeFrameChunk, frames[0].Type)
	assert.Equal(t, "flowchart TD", frames[0].Data)
	assert.Equal(t, schema.OptimizeFrameFinal, frames[2].Type)
	assert.True(t, frames[2].OK)
	assert.Equal(t, "flowchart TD\n    A --> B\n    B --> A", frames[2].Data)

	conversions, err := st.ListConversions(context.Background(), store.ConversionFilter{Source: store.SourceOptimize})
	require.NoError(t, err)
	require.Len(t, conversions, 1)
	assert.Equal(t, "add a retry edge", conversions[0].Prompt)
}

func TestOptimizeEndpointError(t *testing.T) {
	ai := &fakeAI{err: schema.NewError(schema.ErrCodeProtocol, "bad diagram")}
	srv, _ := newTestServer(t, ai, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/optimize", map[string]string{
		"mermaid":      "flowchart TD",
		"instructions": "do the thing",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"error"`)
	assert.Contains(t, rec.Body.String(), "bad diagram")
}

func TestConvertEndpoint(t *testing.T) {
	srv, st := newTestServer(t, nil, nil)

	sceneJSON := json.RawMessage(`{
		"elements": [
			{"id": "r1", "type": "rectangle"},
			{"id": "r2", "type": "rectangle"},
			{"id": "a1", "type": "arrow",
			 "startBinding": {"elementId": "r1"},
			 "endBinding": {"elementId": "r2"}}
		]
	}`)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/convert", map[string]any{
		"scene":   sceneJSON,
		"variant": "flowchart",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Mermaid string `json:"mermaid"`
		Variant string `json:"variant"`
		Nodes   int    `json:"nodes"`
		Edges   int    `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "flowchart", resp.Variant)
	assert.Equal(t, 2, resp.Nodes)
	assert.Equal(t, 1, resp.Edges)
	assert.Contains(t, resp.Mermaid, "flowchart TD")
	assert.Contains(t, resp.Mermaid, "A --> B")

	conversions, err := st.ListConversions(context.Background(), store.ConversionFilter{Source: store.SourceConvert})
	require.NoError(t, err)
	require.Len(t, conversions, 1)
	assert.Equal(t, "flowchart", conversions[0].Variant)
}

func TestConvertEndpointUnknownVariant(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/convert", map[string]any{
		"scene":   json.RawMessage(`{"elements": []}`),
		"variant": "gantt",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConvertEndpointInvalidScene(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/convert", map[string]any{
		"scene": json.RawMessage(`{"elements": [{"type": "rectangle"}]}`),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var derr schema.DiagenError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &derr))
	assert.Equal(t, schema.ErrCodeValidation, derr.Code)
}

func TestRenderEndpoint(t *testing.T) {
	renderer := &fakeRenderer{
		scene: &schema.Scene{Elements: []*schema.Element{
			{ID: "e1", Type: schema.ElementRectangle},
			{ID: "e2", Type: schema.ElementRectangle},
		}},
	}
	srv, _ := newTestServer(t, nil, renderer)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/render", map[string]string{
		"mermaid": "flowchart TD\n    A --> B",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var scene schema.Scene
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scene))
	assert.Len(t, scene.Elements, 2)
}

func TestRenderEndpointFailure(t *testing.T) {
	renderer := &fakeRenderer{err: schema.NewError(schema.ErrCodeRender, "parse error on line 2")}
	srv, _ := newTestServer(t, nil, renderer)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/render", map[string]string{"mermaid": "broken"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "parse error on line 2")
}

func TestHistoryEndpoints(t *testing.T) {
	srv, st := newTestServer(t, nil, nil)
	h := srv.Handler()
	ctx := context.Background()

	c := &store.Conversion{
		ID:        "11111111-1111-1111-1111-111111111111",
		Source:    store.SourceConvert,
		Mermaid:   "flowchart TD",
		Variant:   "flowchart",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.CreateConversion(ctx, c))

	rec := doJSON(t, h, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), c.ID)

	rec = doJSON(t, h, http.MethodGet, "/api/history/"+c.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/history/no-such-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/api/history/"+c.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/history/"+c.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
