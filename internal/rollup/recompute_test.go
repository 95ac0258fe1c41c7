package rollup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skinlytics/skinlytics/internal/model"
)

func listing(name string, source model.Source, nativeID string, price int64, observed time.Time) model.Listing {
	return model.Listing{
		MarketHashName: name,
		Source:         source,
		NativeID:       nativeID,
		PriceCents:     price,
		ObservedAt:     observed,
	}
}

func TestAggregate_DailyStats(t *testing.T) {
	day1 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	day3 := day1.AddDate(0, 0, 2)

	// Three days of quotes: stable at 100, then a drop to 50.
	var listings []model.Listing
	for i, price := range []int64{100, 100, 100} {
		listings = append(listings, listing("Widget A", model.SourceAggregator, "buff:Widget A",
			price, day1.Add(time.Duration(i)*8*time.Hour)))
	}
	for i, price := range []int64{50, 50, 50} {
		listings = append(listings, listing("Widget A", model.SourceAggregator, "buff:Widget A",
			price, day3.Add(time.Duration(i)*8*time.Hour)))
	}

	points := Aggregate(listings)
	require.Len(t, points, 2)

	assert.Equal(t, day1, points[0].Day)
	assert.Equal(t, 3, points[0].ListingCount)
	assert.Equal(t, int64(100), points[0].MinPriceCents)
	assert.Equal(t, int64(100), points[0].MaxPriceCents)
	assert.Equal(t, 100.0, points[0].AvgPriceCents)

	assert.Equal(t, day3, points[1].Day)
	assert.Equal(t, 3, points[1].ListingCount)
	assert.Equal(t, int64(50), points[1].MinPriceCents)
	assert.Equal(t, int64(50), points[1].MaxPriceCents)
	assert.Equal(t, 50.0, points[1].AvgPriceCents)
}

func TestAggregate_MixedPricesAndLiquidity(t *testing.T) {
	day := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)

	listings := []model.Listing{
		listing("Widget B", model.SourceFloatMarket, "fm-1", 120, day.Add(1*time.Hour)),
		listing("Widget B", model.SourceFloatMarket, "fm-2", 80, day.Add(2*time.Hour)),
		// Same offer re-observed at a new price: two rows, one offer.
		listing("Widget B", model.SourceFloatMarket, "fm-1", 110, day.Add(6*time.Hour)),
		// Same native id on a different source is a distinct offer.
		listing("Widget B", model.SourceAggregator, "fm-1", 95, day.Add(3*time.Hour)),
	}

	points := Aggregate(listings)
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, 4, p.ListingCount)
	assert.Equal(t, int64(80), p.MinPriceCents)
	assert.Equal(t, int64(120), p.MaxPriceCents)
	assert.InDelta(t, 101.25, p.AvgPriceCents, 1e-9)
	assert.Equal(t, 3.0, p.Liquidity)
}

func TestAggregate_UTCDayBoundary(t *testing.T) {
	// 23:59 and 00:01 across midnight UTC land in different rows.
	before := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	after := time.Date(2025, 6, 2, 0, 1, 0, 0, time.UTC)

	points := Aggregate([]model.Listing{
		listing("Widget C", model.SourceStorefront, "Widget C", 10, before),
		listing("Widget C", model.SourceStorefront, "Widget C", 20, after),
	})
	require.Len(t, points, 2)
	assert.Equal(t, model.Day(before), points[0].Day)
	assert.Equal(t, model.Day(after), points[1].Day)
}

func TestAggregate_DeterministicOrder(t *testing.T) {
	day := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	listings := []model.Listing{
		listing("Zeta", model.SourceStorefront, "Zeta", 10, day),
		listing("Alpha", model.SourceStorefront, "Alpha", 10, day.AddDate(0, 0, 1)),
		listing("Alpha", model.SourceStorefront, "Alpha", 10, day),
	}

	first := Aggregate(listings)
	require.Len(t, first, 3)
	assert.Equal(t, "Alpha", first[0].MarketHashName)
	assert.Equal(t, "Alpha", first[1].MarketHashName)
	assert.True(t, first[0].Day.Before(first[1].Day))
	assert.Equal(t, "Zeta", first[2].MarketHashName)

	// Repeat runs over the same input produce identical output.
	second := Aggregate(listings)
	assert.Equal(t, first, second)
}

type fakeListingSource struct {
	listings []model.Listing
}

func (f *fakeListingSource) ListingsObservedBetween(_ context.Context, from, to time.Time) ([]model.Listing, error) {
	var out []model.Listing
	for _, l := range f.listings {
		if !l.ObservedAt.Before(from) && l.ObservedAt.Before(to) {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeHistorySink struct {
	rows map[string]model.PriceHistoryPoint
}

func (f *fakeHistorySink) UpsertPriceHistory(_ context.Context, points []model.PriceHistoryPoint) error {
	if f.rows == nil {
		f.rows = make(map[string]model.PriceHistoryPoint)
	}
	for _, p := range points {
		f.rows[p.MarketHashName+p.Day.Format(time.DateOnly)] = p
	}
	return nil
}

func TestRecompute_Idempotent(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeListingSource{listings: []model.Listing{
		listing("Widget A", model.SourceAggregator, "buff:Widget A", 100, day.Add(time.Hour)),
		listing("Widget A", model.SourceAggregator, "buff:Widget A", 80, day.Add(2*time.Hour)),
	}}
	sink := &fakeHistorySink{}
	r := NewRecomputer(src, sink, nil)

	n, err := r.Recompute(context.Background(), day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	firstRun := sink.rows["Widget A"+day.Format(time.DateOnly)]

	// Re-running the same range replaces rather than duplicates.
	n, err = r.Recompute(context.Background(), day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, sink.rows, 1)
	assert.Equal(t, firstRun, sink.rows["Widget A"+day.Format(time.DateOnly)])
}
