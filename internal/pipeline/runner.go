package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/skinlytics/skinlytics/internal/config"
	"github.com/skinlytics/skinlytics/internal/dedup"
	"github.com/skinlytics/skinlytics/internal/model"
	"github.com/skinlytics/skinlytics/internal/source"
	"github.com/skinlytics/skinlytics/internal/storage"
)

// Limiter gates outbound requests for one source.
type Limiter interface {
	Acquire(ctx context.Context) error
	Penalize()
	Success()
}

// ListingWriter persists normalized records.
type ListingWriter interface {
	Write(ctx context.Context, item model.Item, listing model.Listing) (storage.WriteResult, error)
	MarkInactive(ctx context.Context, src model.Source, seenFingerprints []string) (int64, error)
}

// SourceTask pairs an adapter with its rate limiter.
type SourceTask struct {
	Adapter source.Adapter
	Limiter Limiter
}

// SourceStats counts per-source outcomes for one cycle.
type SourceStats struct {
	Fetched   int // records returned by the source
	Accepted  int // new listings written
	Duplicate int // already known, in cache or store
	Rejected  int // failed normalization or referential checks
	Errored   int // store errors on individual records
	Truncated bool

	Failed        bool
	FailureReason string
}

// CycleSummary reports one ingestion cycle across all sources.
type CycleSummary struct {
	ID       uuid.UUID
	Started  time.Time
	Finished time.Time
	Sources  map[model.Source]*SourceStats
}

// Partial reports whether any source failed this cycle.
func (c *CycleSummary) Partial() bool {
	for _, s := range c.Sources {
		if s.Failed {
			return true
		}
	}
	return false
}

// Status is "completed" or "partial", for logs and process exit codes.
func (c *CycleSummary) Status() string {
	if c.Partial() {
		return "partial"
	}
	return "completed"
}

// Runner executes ingestion cycles.
type Runner struct {
	tasks  []SourceTask
	writer ListingWriter
	cache  *dedup.Cache
	cfg    config.PipelineConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner creates a Runner. A nil logger falls back to slog.Default().
func NewRunner(tasks []SourceTask, writer ListingWriter, cache *dedup.Cache, cfg config.PipelineConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		tasks:  tasks,
		writer: writer,
		cache:  cache,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// RunCycle walks every source to completion concurrently. Per-source
// failures land in the summary rather than aborting the cycle; the
// returned error is reserved for context cancellation.
func (r *Runner) RunCycle(ctx context.Context) (*CycleSummary, error) {
	summary := &CycleSummary{
		ID:      uuid.New(),
		Started: r.now(),
		Sources: make(map[model.Source]*SourceStats, len(r.tasks)),
	}

	// Plain errgroup: no shared cancellation, so one failing source
	// does not tear down the others.
	var g errgroup.Group
	for _, task := range r.tasks {
		task := task
		stats := &SourceStats{}
		summary.Sources[task.Adapter.Source()] = stats
		g.Go(func() error {
			r.runSource(ctx, task, stats)
			return nil
		})
	}
	g.Wait()

	summary.Finished = r.now()
	r.logger.Info("cycle finished",
		"cycle", summary.ID,
		"status", summary.Status(),
		"duration", summary.Finished.Sub(summary.Started))
	return summary, ctx.Err()
}

func (r *Runner) runSource(ctx context.Context, task SourceTask, stats *SourceStats) {
	src := task.Adapter.Source()
	logger := r.logger.With("source", src)

	// Non-nil even when the feed is empty: an emptied feed must still
	// deactivate everything, and a nil slice reaches the store as a
	// NULL array that matches nothing.
	seen := []string{}
	cursor := ""
	pages := 0
	for {
		if r.cfg.MaxPages > 0 && pages >= r.cfg.MaxPages {
			stats.Truncated = true
			logger.Warn("page budget exhausted", "pages", pages)
			break
		}

		page, err := r.fetchPage(ctx, task, cursor)
		if err != nil {
			stats.Failed = true
			stats.FailureReason = err.Error()
			logger.Error("source aborted", "cursor", cursor, "error", err)
			return
		}
		pages++
		stats.Fetched += len(page.Records)

		for _, rec := range page.Records {
			r.ingest(ctx, src, rec, stats, &seen, logger)
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	// Only a full walk proves absence. A truncated cycle must not
	// deactivate listings it never got to.
	if !stats.Truncated {
		n, err := r.writer.MarkInactive(ctx, src, seen)
		if err != nil {
			logger.Error("mark inactive failed", "error", err)
		} else if n > 0 {
			logger.Info("listings deactivated", "count", n)
		}
	}

	logger.Info("source finished",
		"pages", pages,
		"fetched", stats.Fetched,
		"accepted", stats.Accepted,
		"duplicate", stats.Duplicate,
		"rejected", stats.Rejected,
		"errored", stats.Errored)
}

func (r *Runner) ingest(ctx context.Context, src model.Source, rec source.Record, stats *SourceStats, seen *[]string, logger *slog.Logger) {
	item, listing, err := rec.Normalize()
	if err != nil {
		if reason, ok := source.RejectReason(err); ok {
			stats.Rejected++
			logger.Debug("record rejected", "reason", reason)
			return
		}
		stats.Errored++
		logger.Warn("normalize failed", "error", err)
		return
	}

	listing.Fingerprint = dedup.Fingerprint(listing)
	listing.IngestedAt = r.now()

	// Duplicates are still live offers: their fingerprints count as
	// seen so MarkInactive keeps them active.
	*seen = append(*seen, listing.Fingerprint)

	if r.cache.Seen(src, listing.Fingerprint) {
		stats.Duplicate++
		return
	}

	res, err := r.writer.Write(ctx, item, listing)
	if err != nil {
		stats.Errored++
		logger.Warn("write failed", "item", item.MarketHashName, "error", err)
		return
	}
	switch res.Outcome {
	case storage.OutcomeInserted:
		stats.Accepted++
	case storage.OutcomeDuplicate:
		stats.Duplicate++
	case storage.OutcomeRejected:
		stats.Rejected++
		logger.Debug("record rejected by store", "reason", res.Reason)
	}
}

// fetchPage acquires a rate limit grant and fetches one page, retrying
// transient failures. Quota rejections (429) penalize the limiter and
// retry the same cursor without consuming a retry attempt; other
// retryable errors burn attempts up to cfg.MaxRetries.
func (r *Runner) fetchPage(ctx context.Context, task SourceTask, cursor string) (*source.Page, error) {
	attempts := 0
	for {
		if err := task.Limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		page, err := task.Adapter.FetchPage(ctx, cursor)
		if err == nil {
			task.Limiter.Success()
			return page, nil
		}

		if source.IsRateLimited(err) {
			task.Limiter.Penalize()
			r.logger.Warn("quota rejection",
				"source", task.Adapter.Source(), "cursor", cursor)
			continue
		}

		if !source.IsRetryable(err) {
			return nil, err
		}

		attempts++
		if attempts > r.cfg.MaxRetries {
			return nil, fmt.Errorf("after %d retries: %w", r.cfg.MaxRetries, err)
		}
		backoff := r.cfg.RetryBackoff * time.Duration(1<<(attempts-1))
		r.logger.Warn("transient fetch error",
			"source", task.Adapter.Source(),
			"attempt", attempts,
			"backoff", backoff,
			"error", err)
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
