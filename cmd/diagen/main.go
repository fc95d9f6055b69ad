package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/diagen/diagen/internal/ai"
	"github.com/diagen/diagen/internal/logging"
	"github.com/diagen/diagen/internal/render"
	"github.com/diagen/diagen/internal/retention"
	"github.com/diagen/diagen/internal/server"
	"github.com/diagen/diagen/internal/store"
	"github.com/diagen/diagen/internal/validation"
	"github.com/diagen/diagen/pkg/mcp"
)

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected serve, mcp, or version)\n", cmd)
		os.Exit(2)
	}
}

// appDeps is the shared dependency graph behind both entry points.
type appDeps struct {
	store     store.Store
	ai        *ai.Client
	renderer  render.Renderer
	validator *validation.SceneValidator
}

// runServe wires the full service and serves the HTTP API until interrupted.
func runServe() error {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	deps, cleanup, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	janitor, err := retention.NewJanitor(deps.store, cfg.RetentionCron,
		time.Duration(cfg.RetentionDays)*24*time.Hour, logger)
	if err != nil {
		return fmt.Errorf("configure retention: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := janitor.Start(ctx); err != nil {
		return err
	}
	defer janitor.Stop()

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: server.NewServer(server.Deps{
			Store:     deps.store,
			AI:        deps.ai,
			Renderer:  deps.renderer,
			Validator: deps.validator,
			Logger:    logger,
		}).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("diagen listening", slog.String("addr", cfg.ListenAddr))
		if serveErr := srv.ListenAndServe(); !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runMCP wires the service and serves the MCP tools over stdio.
func runMCP() error {
	cfg := loadConfig()

	// stdout is the MCP transport; logs must stay on stderr.
	logger := newLogger(cfg.LogLevel)

	deps, cleanup, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := mcp.NewDiagenServer(mcp.DiagenServerDeps{
		AI:        deps.ai,
		Store:     deps.store,
		Renderer:  deps.renderer,
		Validator: deps.validator,
		Logger:    logger,
	})
	return s.Serve(ctx)
}

// buildDeps constructs the shared dependency graph. The returned cleanup
// closes the store.
func buildDeps(cfg Config, logger *slog.Logger) (*appDeps, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("migrate store: %w", err)
	}

	validator, err := validation.NewSceneValidator()
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("compile scene schema: %w", err)
	}

	deps := &appDeps{
		store: st,
		ai: ai.NewClient(ai.Config{
			BaseURL: cfg.AIBaseURL,
			APIKey:  cfg.AIAPIKey,
			Model:   cfg.AIModel,
		}, logger),
		renderer:  render.NewHTTPRenderer(cfg.RendererURL, 0),
		validator: validator,
	}
	cleanup := func() { _ = st.Close() }
	return deps, cleanup, nil
}

// newLogger builds the process logger with correlation IDs injected from
// request contexts.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
