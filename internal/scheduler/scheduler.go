// Package scheduler drives recurring ingestion cycles.
//
// The scheduler:
//   - Runs one cycle immediately on start, then on every tick
//   - Invokes post-cycle hooks (rollup, scoring) after each cycle
//   - Never overlaps cycles; a slow cycle delays the next tick
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/skinlytics/skinlytics/internal/pipeline"
)

// CycleRunner executes one ingestion cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.CycleSummary, error)
}

// Hook runs after each cycle with its summary.
type Hook func(ctx context.Context, summary *pipeline.CycleSummary) error

// Scheduler runs ingestion cycles on a fixed interval.
type Scheduler struct {
	interval time.Duration
	runner   CycleRunner
	hooks    []Hook
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. A nil logger falls back to slog.Default().
func New(interval time.Duration, runner CycleRunner, logger *slog.Logger, hooks ...Hook) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		runner:   runner,
		hooks:    hooks,
		logger:   logger,
	}
}

// Start begins the cycle loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop gracefully shuts down, waiting for an in-flight cycle.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First cycle runs immediately on start.
	s.runOnce()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	summary, err := s.runner.RunCycle(s.ctx)
	if err != nil {
		s.logger.Error("cycle aborted", "error", err)
		return
	}

	for _, hook := range s.hooks {
		if err := hook(s.ctx, summary); err != nil {
			s.logger.Error("post-cycle hook failed", "cycle", summary.ID, "error", err)
		}
	}
}
