package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skinlytics/skinlytics/internal/config"
	"github.com/skinlytics/skinlytics/internal/dedup"
	"github.com/skinlytics/skinlytics/internal/model"
	"github.com/skinlytics/skinlytics/internal/pipeline"
	"github.com/skinlytics/skinlytics/internal/ratelimit"
	"github.com/skinlytics/skinlytics/internal/rollup"
	"github.com/skinlytics/skinlytics/internal/scheduler"
	"github.com/skinlytics/skinlytics/internal/score"
	"github.com/skinlytics/skinlytics/internal/source"
	"github.com/skinlytics/skinlytics/internal/storage"
	"github.com/skinlytics/skinlytics/internal/version"
)

// Exit codes: 0 cycle completed, 1 partial source failures, 2 fatal
// configuration or store error.
const (
	exitOK      = 0
	exitPartial = 1
	exitFatal   = 2
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single cycle and exit")
	maxPages := flag.Int("max-pages", 0, "override per-source page budget (0 = use config)")
	maxDuration := flag.Duration("max-duration", 0, "abort after this long (0 = no limit)")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(exitFatal)
	}

	if *maxPages > 0 {
		cfg.Pipeline.MaxPages = *maxPages
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"poll_interval", cfg.Pipeline.PollInterval,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *maxDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, *maxDuration)
		defer cancel()
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := storage.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(exitFatal)
	}
	defer pool.Close()

	if err := storage.Migrate(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(exitFatal)
	}

	logger.Info("database ready")

	tasks := buildTasks(cfg, logger)
	if len(tasks) == 0 {
		logger.Error("no sources enabled")
		os.Exit(exitFatal)
	}

	writer := storage.NewWriter(pool, logger)
	cache := dedup.NewCache(cfg.Pipeline.DedupCacheSize)
	runner := pipeline.NewRunner(tasks, writer, cache, cfg.Pipeline, logger)

	store := storage.NewStore(pool)
	recomputer := rollup.NewRecomputer(store, store, logger)
	scorer := score.NewRunner(store, cfg.Scoring, logger)

	derive := func(ctx context.Context, summary *pipeline.CycleSummary) error {
		now := time.Now()
		from := model.Day(now).AddDate(0, 0, -cfg.Scoring.LongWindowDays)
		if _, err := recomputer.Recompute(ctx, from, model.Day(now).AddDate(0, 0, 1)); err != nil {
			return fmt.Errorf("rollup: %w", err)
		}
		if _, err := scorer.Run(ctx); err != nil {
			return fmt.Errorf("scoring: %w", err)
		}
		return nil
	}

	if *once {
		os.Exit(runOnce(ctx, runner, derive, logger))
	}

	sched := scheduler.New(cfg.Pipeline.PollInterval, runner, logger, derive)
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(exitFatal)
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown timed out", "error", err)
	}
	logger.Info("collector stopped")
}

func runOnce(ctx context.Context, runner *pipeline.Runner, derive scheduler.Hook, logger *slog.Logger) int {
	summary, err := runner.RunCycle(ctx)
	if err != nil {
		logger.Error("cycle aborted", "error", err)
		return exitPartial
	}
	if err := derive(ctx, summary); err != nil {
		logger.Error("post-cycle processing failed", "error", err)
		return exitPartial
	}
	if summary.Partial() {
		return exitPartial
	}
	return exitOK
}

// buildTasks creates an adapter and limiter for each enabled source.
func buildTasks(cfg *config.Config, logger *slog.Logger) []pipeline.SourceTask {
	var tasks []pipeline.SourceTask

	add := func(sc config.SourceConfig, build func(*source.Client) source.Adapter) {
		if !sc.Enabled {
			return
		}
		opts := []source.ClientOption{
			source.WithTimeout(sc.Timeout),
			source.WithLogger(logger),
		}
		if sc.Credential != "" {
			opts = append(opts, source.WithCredential(sc.CredentialHeader, sc.Credential))
		}
		client := source.NewClient(sc.BaseURL, opts...)

		limiter := ratelimit.New(ratelimit.Config{
			Requests:       sc.QuotaRequests,
			Window:         sc.QuotaWindow,
			BackoffBase:    sc.BackoffBase,
			BackoffCap:     sc.BackoffCap,
			RecoveryStreak: cfg.Pipeline.RecoveryStreak,
		})

		tasks = append(tasks, pipeline.SourceTask{Adapter: build(client), Limiter: limiter})
	}

	add(cfg.Sources.FloatMarket, func(c *source.Client) source.Adapter {
		return source.NewFloatMarketAdapter(c, cfg.Sources.FloatMarket.PageSize)
	})
	add(cfg.Sources.Storefront, func(c *source.Client) source.Adapter {
		return source.NewStorefrontAdapter(c, cfg.Sources.Storefront.PageSize)
	})
	add(cfg.Sources.Aggregator, func(c *source.Client) source.Adapter {
		return source.NewAggregatorAdapter(c, cfg.Sources.Aggregator.PageSize)
	})

	return tasks
}
