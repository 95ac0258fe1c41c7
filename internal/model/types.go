package model

import "time"

// Source identifies one external marketplace feed.
type Source string

const (
	// SourceFloatMarket is the float-grade trading marketplace (per-listing
	// wear values, paint seeds, and seller statistics).
	SourceFloatMarket Source = "floatmarket"

	// SourceStorefront is the official digital-storefront market (aggregate
	// per-item sell listings, no wear or seller detail).
	SourceStorefront Source = "storefront"

	// SourceAggregator is the third-party price aggregator service.
	SourceAggregator Source = "aggregator"
)

// Sources lists every known source in a stable order.
func Sources() []Source {
	return []Source{SourceFloatMarket, SourceStorefront, SourceAggregator}
}

// Item is a canonical tradable good. MarketHashName is the natural key;
// everything else is declarative metadata that ingestion never mutates
// after first insert (discrepancies are logged, not auto-corrected).
type Item struct {
	MarketHashName string
	DisplayName    string
	WearTier       string // e.g. "Field-Tested"; empty where not applicable
	Rarity         string
	Collection     string
	StatTrak       bool // trade-stat tracking variant
	Souvenir       bool // commemorative variant
}

// TrustSnapshot captures counterparty trust signals as observed at
// listing time. Sources without seller detail leave it zeroed.
type TrustSnapshot struct {
	Trades             int // total completed trades
	VerifiedTrades     int
	FailedTrades       int
	MedianTradeMinutes int
}

// Listing is one observed offer for an Item at a point in time from one
// source. Immutable after insert except for the Active flag, which the
// next ingestion cycle may clear when the listing disappears from the
// source feed. (Source, NativeID, Fingerprint) is unique: a changed
// price for the same native id is a new row, not an update.
type Listing struct {
	ID             int64
	MarketHashName string
	Source         Source
	NativeID       string // source-native listing identifier
	PriceCents     int64
	FloatValue     *float64 // wear value in [0,1]; nil where the source has no wear concept
	PaintSeed      *int     // pattern seed; nil where not applicable
	Trust          TrustSnapshot
	ObservedAt     time.Time // source-reported time, falls back to fetch time
	IngestedAt     time.Time
	Fingerprint    string
	Active         bool
}

// PriceHistoryPoint is the derived daily rollup for one item. Owned by
// the aggregator; recomputed idempotently, never written by adapters.
type PriceHistoryPoint struct {
	MarketHashName string
	Day            time.Time // UTC midnight
	ListingCount   int
	MinPriceCents  int64
	MaxPriceCents  int64
	AvgPriceCents  float64
	Liquidity      float64 // distinct offers observed that day
}

// OpportunityScore is the derived per-item ranking record. Entirely
// recomputable from PriceHistoryPoint plus recent listings; safe to
// drop and rebuild.
type OpportunityScore struct {
	MarketHashName string
	Score          int // 0-100
	PriceDevScore  float64
	LiquidityScore float64
	TrendScore     float64
	ComputedAt     time.Time
}

// Day truncates t to UTC midnight, the grain of price history rollups.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
