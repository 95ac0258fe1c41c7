package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/skinlytics/skinlytics/internal/model"
)

// ListingSource provides the raw listings to aggregate.
type ListingSource interface {
	ListingsObservedBetween(ctx context.Context, from, to time.Time) ([]model.Listing, error)
}

// HistorySink receives the recomputed daily rows.
type HistorySink interface {
	UpsertPriceHistory(ctx context.Context, points []model.PriceHistoryPoint) error
}

// Recomputer rebuilds price_history for a day range.
type Recomputer struct {
	source ListingSource
	sink   HistorySink
	logger *slog.Logger
}

// NewRecomputer creates a Recomputer. A nil logger falls back to
// slog.Default().
func NewRecomputer(source ListingSource, sink HistorySink, logger *slog.Logger) *Recomputer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recomputer{source: source, sink: sink, logger: logger}
}

// Recompute aggregates every listing observed in [from, to) into daily
// rows and upserts them. Returns the number of rows written. Days with
// no observations produce no row.
func (r *Recomputer) Recompute(ctx context.Context, from, to time.Time) (int, error) {
	listings, err := r.source.ListingsObservedBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("load listings: %w", err)
	}

	points := Aggregate(listings)
	if err := r.sink.UpsertPriceHistory(ctx, points); err != nil {
		return 0, fmt.Errorf("write history: %w", err)
	}

	r.logger.Info("rollup recomputed",
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly),
		"listings", len(listings),
		"rows", len(points))
	return len(points), nil
}

type dayKey struct {
	name string
	day  time.Time
}

type dayAccum struct {
	count  int
	min    int64
	max    int64
	sum    int64
	offers map[string]struct{}
}

// Aggregate groups listings by (item, UTC day) and computes count, min,
// max, average, and the distinct-offer liquidity figure. Output is
// sorted by item name, then day.
func Aggregate(listings []model.Listing) []model.PriceHistoryPoint {
	accums := make(map[dayKey]*dayAccum)
	for _, l := range listings {
		key := dayKey{name: l.MarketHashName, day: model.Day(l.ObservedAt)}
		acc, ok := accums[key]
		if !ok {
			acc = &dayAccum{min: l.PriceCents, max: l.PriceCents, offers: make(map[string]struct{})}
			accums[key] = acc
		}
		acc.count++
		acc.sum += l.PriceCents
		if l.PriceCents < acc.min {
			acc.min = l.PriceCents
		}
		if l.PriceCents > acc.max {
			acc.max = l.PriceCents
		}
		acc.offers[string(l.Source)+"|"+l.NativeID] = struct{}{}
	}

	points := make([]model.PriceHistoryPoint, 0, len(accums))
	for key, acc := range accums {
		points = append(points, model.PriceHistoryPoint{
			MarketHashName: key.name,
			Day:            key.day,
			ListingCount:   acc.count,
			MinPriceCents:  acc.min,
			MaxPriceCents:  acc.max,
			AvgPriceCents:  float64(acc.sum) / float64(acc.count),
			Liquidity:      float64(len(acc.offers)),
		})
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].MarketHashName != points[j].MarketHashName {
			return points[i].MarketHashName < points[j].MarketHashName
		}
		return points[i].Day.Before(points[j].Day)
	})
	return points
}
