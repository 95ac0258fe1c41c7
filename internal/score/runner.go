package score

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skinlytics/skinlytics/internal/config"
	"github.com/skinlytics/skinlytics/internal/model"
)

// HistoryStore is the storage surface the runner needs.
type HistoryStore interface {
	ItemsWithListingsSince(ctx context.Context, since time.Time) ([]string, error)
	HistoryForItem(ctx context.Context, name string, from, to time.Time) ([]model.PriceHistoryPoint, error)
	UpsertScores(ctx context.Context, scores []model.OpportunityScore) error
}

// Runner scores every item with recent market activity and persists
// the results.
type Runner struct {
	store  HistoryStore
	cfg    config.ScoringConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner creates a Runner. A nil logger falls back to slog.Default().
func NewRunner(store HistoryStore, cfg config.ScoringConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{store: store, cfg: cfg, logger: logger, now: time.Now}
}

// Run scores all items with listings inside the long window. Items with
// insufficient history are skipped, not failed. Returns the number of
// items scored.
func (r *Runner) Run(ctx context.Context) (int, error) {
	now := r.now()
	since := model.Day(now).AddDate(0, 0, -r.cfg.LongWindowDays)

	names, err := r.store.ItemsWithListingsSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("list candidates: %w", err)
	}

	var scores []model.OpportunityScore
	skipped := 0
	for _, name := range names {
		history, err := r.store.HistoryForItem(ctx, name, since, model.Day(now).AddDate(0, 0, 1))
		if err != nil {
			return 0, fmt.Errorf("history for %s: %w", name, err)
		}

		sc, err := Compute(name, history, r.cfg, now)
		if err != nil {
			if errors.Is(err, ErrInsufficientHistory) {
				skipped++
				continue
			}
			return 0, fmt.Errorf("score %s: %w", name, err)
		}
		scores = append(scores, sc)
	}

	if err := r.store.UpsertScores(ctx, scores); err != nil {
		return 0, fmt.Errorf("write scores: %w", err)
	}

	r.logger.Info("scoring complete",
		"candidates", len(names),
		"scored", len(scores),
		"skipped", skipped)
	return len(scores), nil
}
