// Package retention prunes old conversion history on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/diagen/diagen/internal/store"
)

// Janitor deletes conversions older than the configured age whenever the
// cron schedule fires.
type Janitor struct {
	store    store.Store
	schedule cron.Schedule
	maxAge   time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor creates a Janitor. cronSpec uses the standard five-field cron
// syntax; maxAge is how long conversions are kept.
func NewJanitor(s store.Store, cronSpec string, maxAge time.Duration, logger *slog.Logger) (*Janitor, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronSpec)
	if err != nil {
		return nil, fmt.Errorf("parse retention schedule %q: %w", cronSpec, err)
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", maxAge)
	}
	return &Janitor{
		store:    s,
		schedule: schedule,
		maxAge:   maxAge,
		logger:   logger,
	}, nil
}

// Start launches the background pruning loop.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.done != nil {
		j.mu.Unlock()
		return fmt.Errorf("janitor already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})
	j.mu.Unlock()

	go j.loop(runCtx)
	j.logger.Info("retention janitor started", slog.Duration("max_age", j.maxAge))
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (j *Janitor) loop(ctx context.Context) {
	defer close(j.done)

	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := j.Prune(ctx); err != nil {
				j.logger.Error("retention prune failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Prune deletes all conversions older than the retention window.
func (j *Janitor) Prune(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.maxAge)
	n, err := j.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		j.logger.Info("pruned old conversions",
			slog.Int64("removed", n),
			slog.Time("cutoff", cutoff),
		)
	}
	return nil
}
