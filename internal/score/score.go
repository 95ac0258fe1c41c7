package score

import (
	"errors"
	"math"
	"time"

	"github.com/skinlytics/skinlytics/internal/config"
	"github.com/skinlytics/skinlytics/internal/model"
)

// ErrInsufficientHistory marks items with too few observations to score.
var ErrInsufficientHistory = errors.New("insufficient history")

// Sub-score weights. Price deviation dominates: a cheap ask is the
// signal, liquidity and trend qualify how actionable it is.
const (
	weightPriceDev  = 0.5
	weightLiquidity = 0.3
	weightTrend     = 0.2
)

// fullDeviation is the below-mean fraction that saturates the price
// deviation sub-score at 100.
const fullDeviation = 0.30

// trendClamp bounds the moving-average gap fed into the trend
// sub-score. Gaps beyond 20 percent in either direction saturate.
const trendClamp = 0.20

// Compute scores one item from its daily history, which must be sorted
// ascending by day. Returns ErrInsufficientHistory when the total
// observation count over the window is below cfg.MinObservations.
func Compute(name string, history []model.PriceHistoryPoint, cfg config.ScoringConfig, now time.Time) (model.OpportunityScore, error) {
	observations := 0
	for _, p := range history {
		observations += p.ListingCount
	}
	if len(history) == 0 || observations < cfg.MinObservations {
		return model.OpportunityScore{}, ErrInsufficientHistory
	}

	dev := priceDevScore(history)
	liq := liquidityScore(history)
	trend := trendScore(history, cfg.ShortWindowDays, cfg.LongWindowDays, now)

	blended := weightPriceDev*dev + weightLiquidity*liq + weightTrend*trend
	total := int(math.Round(blended))
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	return model.OpportunityScore{
		MarketHashName: name,
		Score:          total,
		PriceDevScore:  dev,
		LiquidityScore: liq,
		TrendScore:     trend,
		ComputedAt:     now,
	}, nil
}

// priceDevScore measures how far the latest daily average sits below
// the trailing mean of the whole window. At or above the mean scores 0;
// fullDeviation below or more scores 100; linear in between.
func priceDevScore(history []model.PriceHistoryPoint) float64 {
	var sum float64
	for _, p := range history {
		sum += p.AvgPriceCents
	}
	mean := sum / float64(len(history))
	if mean <= 0 {
		return 0
	}

	latest := history[len(history)-1].AvgPriceCents
	dev := (mean - latest) / mean
	if dev <= 0 {
		return 0
	}
	if dev >= fullDeviation {
		return 100
	}
	return dev / fullDeviation * 100
}

// liquidityScore is the percentile of the latest day's liquidity within
// the item's own history. Ties count half, so a perfectly flat series
// scores 50 rather than 100.
func liquidityScore(history []model.PriceHistoryPoint) float64 {
	latest := history[len(history)-1].Liquidity
	var less, equal float64
	for _, p := range history {
		switch {
		case p.Liquidity < latest:
			less++
		case p.Liquidity == latest:
			equal++
		}
	}
	return (less + equal/2) / float64(len(history)) * 100
}

// trendScore compares the short and long moving averages of the daily
// price. A falling market (short below long) scores above 50: the same
// discount is worth more when the whole market has not already repriced
// it. The gap is clamped at trendClamp before scaling.
func trendScore(history []model.PriceHistoryPoint, shortDays, longDays int, now time.Time) float64 {
	shortMA := windowMean(history, now, shortDays)
	longMA := windowMean(history, now, longDays)
	if longMA <= 0 || shortMA <= 0 {
		return 50
	}

	gap := (longMA - shortMA) / longMA
	if gap > trendClamp {
		gap = trendClamp
	}
	if gap < -trendClamp {
		gap = -trendClamp
	}
	return 50 + gap/trendClamp*50
}

// windowMean averages the daily prices whose day falls within the last
// `days` days before now. Returns 0 when no points qualify.
func windowMean(history []model.PriceHistoryPoint, now time.Time, days int) float64 {
	cutoff := model.Day(now).AddDate(0, 0, -days)
	var sum float64
	var n int
	for _, p := range history {
		if p.Day.Before(cutoff) {
			continue
		}
		sum += p.AvgPriceCents
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
