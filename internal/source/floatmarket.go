package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/skinlytics/skinlytics/internal/model"
)

// FloatMarketAdapter polls the float-grade trading marketplace. It is
// the richest feed: per-listing wear values, paint seeds, and seller
// trade statistics. Pagination is an opaque cursor returned alongside
// each page.
type FloatMarketAdapter struct {
	client   *Client
	pageSize int
}

// NewFloatMarketAdapter creates the float marketplace adapter.
func NewFloatMarketAdapter(client *Client, pageSize int) *FloatMarketAdapter {
	if pageSize < 1 || pageSize > 50 {
		pageSize = 50 // API maximum
	}
	return &FloatMarketAdapter{client: client, pageSize: pageSize}
}

func (a *FloatMarketAdapter) Source() model.Source {
	return model.SourceFloatMarket
}

// FetchPage fetches one page of listings, most recent first.
func (a *FloatMarketAdapter) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	query := map[string]string{
		"limit":   strconv.Itoa(a.pageSize),
		"sort_by": "most_recent",
	}
	if cursor != "" {
		query["cursor"] = cursor
	}

	var resp floatMarketResponse
	if err := a.client.GetJSON(ctx, "/listings", query, &resp); err != nil {
		return nil, fmt.Errorf("fetch float market listings: %w", err)
	}

	fetchedAt := time.Now().UTC()
	page := &Page{
		Records:    make([]Record, len(resp.Data)),
		NextCursor: resp.Cursor,
	}
	for i := range resp.Data {
		resp.Data[i].fetchedAt = fetchedAt
		page.Records[i] = &resp.Data[i]
	}
	// A short page means the feed is exhausted even when the API still
	// echoes a cursor.
	if len(resp.Data) < a.pageSize {
		page.NextCursor = ""
	}
	return page, nil
}

type floatMarketResponse struct {
	Data   []floatMarketRecord `json:"data"`
	Cursor string              `json:"cursor"`
}

type floatMarketRecord struct {
	ID        string            `json:"id"`
	Price     *int64            `json:"price"` // cents; pointer so a missing field is detectable
	CreatedAt string            `json:"created_at"`
	Item      floatMarketItem   `json:"item"`
	Seller    floatMarketSeller `json:"seller"`

	fetchedAt time.Time
}

type floatMarketItem struct {
	MarketHashName string   `json:"market_hash_name"`
	ItemName       string   `json:"item_name"`
	WearName       string   `json:"wear_name"`
	RarityName     string   `json:"rarity_name"`
	Collection     string   `json:"collection"`
	IsStatTrak     bool     `json:"is_stattrak"`
	IsSouvenir     bool     `json:"is_souvenir"`
	FloatValue     *float64 `json:"float_value"`
	PaintSeed      *int     `json:"paint_seed"`
}

type floatMarketSeller struct {
	Statistics floatMarketSellerStats `json:"statistics"`
}

type floatMarketSellerStats struct {
	TotalTrades         int `json:"total_trades"`
	TotalVerifiedTrades int `json:"total_verified_trades"`
	TotalFailedTrades   int `json:"total_failed_trades"`
	MedianTradeTime     int `json:"median_trade_time"` // seconds
}

// Normalize maps one float market listing onto the canonical shapes.
func (r *floatMarketRecord) Normalize() (model.Item, model.Listing, error) {
	if r.Item.MarketHashName == "" {
		return model.Item{}, model.Listing{}, reject("missing market hash name")
	}
	if r.ID == "" {
		return model.Item{}, model.Listing{}, reject("missing listing id")
	}
	if r.Price == nil {
		return model.Item{}, model.Listing{}, reject("missing price field")
	}
	if *r.Price <= 0 {
		return model.Item{}, model.Listing{}, reject("non-positive price")
	}
	if r.Item.FloatValue != nil && (*r.Item.FloatValue < 0 || *r.Item.FloatValue > 1) {
		return model.Item{}, model.Listing{}, reject("float value outside [0,1]")
	}

	displayName := r.Item.ItemName
	if displayName == "" {
		displayName = r.Item.MarketHashName
	}

	item := model.Item{
		MarketHashName: r.Item.MarketHashName,
		DisplayName:    displayName,
		WearTier:       r.Item.WearName,
		Rarity:         r.Item.RarityName,
		Collection:     r.Item.Collection,
		StatTrak:       r.Item.IsStatTrak,
		Souvenir:       r.Item.IsSouvenir,
	}

	observed := r.fetchedAt
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		observed = t.UTC()
	}

	listing := model.Listing{
		MarketHashName: r.Item.MarketHashName,
		Source:         model.SourceFloatMarket,
		NativeID:       r.ID,
		PriceCents:     *r.Price,
		FloatValue:     r.Item.FloatValue,
		PaintSeed:      r.Item.PaintSeed,
		Trust: model.TrustSnapshot{
			Trades:             r.Seller.Statistics.TotalTrades,
			VerifiedTrades:     r.Seller.Statistics.TotalVerifiedTrades,
			FailedTrades:       r.Seller.Statistics.TotalFailedTrades,
			MedianTradeMinutes: r.Seller.Statistics.MedianTradeTime / 60,
		},
		ObservedAt: observed,
		Active:     true,
	}

	return item, listing, nil
}
