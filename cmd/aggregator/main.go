package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skinlytics/skinlytics/internal/config"
	"github.com/skinlytics/skinlytics/internal/model"
	"github.com/skinlytics/skinlytics/internal/report"
	"github.com/skinlytics/skinlytics/internal/rollup"
	"github.com/skinlytics/skinlytics/internal/score"
	"github.com/skinlytics/skinlytics/internal/storage"
	"github.com/skinlytics/skinlytics/internal/version"
)

// aggregator recomputes daily rollups and scores for a date range,
// optionally rendering the xlsx opportunity report. Derived tables are
// rebuilt idempotently, so re-running any range is always safe.
func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	fromStr := flag.String("from", "", "start day, YYYY-MM-DD (default: long scoring window ago)")
	toStr := flag.String("to", "", "end day exclusive, YYYY-MM-DD (default: tomorrow)")
	reportPath := flag.String("report", "", "write xlsx opportunity report to this path")
	minScore := flag.Int("min-score", 50, "minimum score for the report")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting aggregator", "version", version.Version, "config", *configPath)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	now := time.Now()
	from := model.Day(now).AddDate(0, 0, -cfg.Scoring.LongWindowDays)
	to := model.Day(now).AddDate(0, 0, 1)
	if *fromStr != "" {
		if from, err = time.Parse(time.DateOnly, *fromStr); err != nil {
			logger.Error("invalid -from", "error", err)
			os.Exit(2)
		}
	}
	if *toStr != "" {
		if to, err = time.Parse(time.DateOnly, *toStr); err != nil {
			logger.Error("invalid -to", "error", err)
			os.Exit(2)
		}
	}
	if !from.Before(to) {
		logger.Error("-from must be before -to", "from", from, "to", to)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	pool, err := storage.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(2)
	}
	defer pool.Close()

	store := storage.NewStore(pool)

	rows, err := rollup.NewRecomputer(store, store, logger).Recompute(ctx, from, to)
	if err != nil {
		logger.Error("rollup failed", "error", err)
		os.Exit(1)
	}
	logger.Info("rollup done", "rows", rows)

	scored, err := score.NewRunner(store, cfg.Scoring, logger).Run(ctx)
	if err != nil {
		logger.Error("scoring failed", "error", err)
		os.Exit(1)
	}
	logger.Info("scoring done", "items", scored)

	if *reportPath != "" {
		opps, err := store.TopOpportunities(ctx, storage.OpportunityFilter{MinScore: *minScore})
		if err != nil {
			logger.Error("loading opportunities failed", "error", err)
			os.Exit(1)
		}
		if err := report.WriteOpportunities(*reportPath, opps, now); err != nil {
			logger.Error("writing report failed", "error", err)
			os.Exit(1)
		}
		logger.Info("report written", "path", *reportPath, "rows", len(opps))
	}
}
