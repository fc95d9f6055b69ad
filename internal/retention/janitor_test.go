package retention

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagen/diagen/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewJanitorInvalidSpec(t *testing.T) {
	s := newTestStore(t)

	_, err := NewJanitor(s, "not a cron spec", 24*time.Hour, testLogger())
	assert.Error(t, err)

	_, err = NewJanitor(s, "0 3 * * *", 0, testLogger())
	assert.Error(t, err)
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stale := &store.Conversion{
		ID:        uuid.New().String(),
		Source:    store.SourceGenerate,
		Mermaid:   "flowchart TD",
		Variant:   "flowchart",
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	fresh := &store.Conversion{
		ID:        uuid.New().String(),
		Source:    store.SourceGenerate,
		Mermaid:   "flowchart TD",
		Variant:   "flowchart",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateConversion(ctx, stale))
	require.NoError(t, s.CreateConversion(ctx, fresh))

	j, err := NewJanitor(s, "0 3 * * *", 24*time.Hour, testLogger())
	require.NoError(t, err)
	require.NoError(t, j.Prune(ctx))

	_, err = s.GetConversion(ctx, stale.ID)
	assert.Error(t, err, "stale conversion pruned")

	_, err = s.GetConversion(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestStartStop(t *testing.T) {
	s := newTestStore(t)

	j, err := NewJanitor(s, "0 3 * * *", 24*time.Hour, testLogger())
	require.NoError(t, err)

	require.NoError(t, j.Start(context.Background()))
	assert.Error(t, j.Start(context.Background()), "double start rejected")
	j.Stop()
}
