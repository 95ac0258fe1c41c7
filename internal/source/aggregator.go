package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/skinlytics/skinlytics/internal/model"
)

// AggregatorAdapter polls the third-party price aggregator, which
// relays one quote per (item, provider) pair. There is no per-listing
// identity, wear value, or seller detail; the provider-qualified item
// name serves as the native id.
type AggregatorAdapter struct {
	client   *Client
	pageSize int
}

// NewAggregatorAdapter creates the aggregator adapter.
func NewAggregatorAdapter(client *Client, pageSize int) *AggregatorAdapter {
	if pageSize < 1 {
		pageSize = 100
	}
	return &AggregatorAdapter{client: client, pageSize: pageSize}
}

func (a *AggregatorAdapter) Source() model.Source {
	return model.SourceAggregator
}

// FetchPage fetches one page of aggregated quotes.
func (a *AggregatorAdapter) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	query := map[string]string{
		"game":  "cs2",
		"limit": strconv.Itoa(a.pageSize),
	}
	if cursor != "" {
		query["cursor"] = cursor
	}

	var resp aggregatorResponse
	if err := a.client.GetJSON(ctx, "/v2/items", query, &resp); err != nil {
		return nil, fmt.Errorf("fetch aggregator items: %w", err)
	}

	fetchedAt := time.Now().UTC()
	page := &Page{
		Records:    make([]Record, len(resp.Items)),
		NextCursor: resp.NextCursor,
	}
	for i := range resp.Items {
		resp.Items[i].fetchedAt = fetchedAt
		page.Records[i] = &resp.Items[i]
	}
	return page, nil
}

type aggregatorResponse struct {
	Items      []aggregatorRecord `json:"items"`
	NextCursor string             `json:"next_cursor"`
}

type aggregatorRecord struct {
	MarketHashName string `json:"market_hash_name"`
	Provider       string `json:"provider"`
	Price          *int64 `json:"price"` // cents
	UpdatedAt      string `json:"updated_at"`

	fetchedAt time.Time
}

// Normalize maps one aggregated quote onto the canonical shapes.
func (r *aggregatorRecord) Normalize() (model.Item, model.Listing, error) {
	if r.MarketHashName == "" {
		return model.Item{}, model.Listing{}, reject("missing market hash name")
	}
	if r.Price == nil {
		return model.Item{}, model.Listing{}, reject("missing price field")
	}
	if *r.Price <= 0 {
		return model.Item{}, model.Listing{}, reject("non-positive price")
	}

	item := model.Item{
		MarketHashName: r.MarketHashName,
		DisplayName:    r.MarketHashName,
		WearTier:       parseWearTier(r.MarketHashName),
	}

	nativeID := r.MarketHashName
	if r.Provider != "" {
		nativeID = r.Provider + ":" + r.MarketHashName
	}

	observed := r.fetchedAt
	if t, err := time.Parse(time.RFC3339, r.UpdatedAt); err == nil {
		observed = t.UTC()
	}

	listing := model.Listing{
		MarketHashName: r.MarketHashName,
		Source:         model.SourceAggregator,
		NativeID:       nativeID,
		PriceCents:     *r.Price,
		ObservedAt:     observed,
		Active:         true,
	}

	return item, listing, nil
}
