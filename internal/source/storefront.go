package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/skinlytics/skinlytics/internal/model"
)

// StorefrontAdapter polls the official storefront market's search
// endpoint. The feed is aggregate: one record per item with its lowest
// ask and listing count, no wear values and no seller detail, so those
// fields stay unset. Pagination is a numeric offset carried as the
// cursor.
type StorefrontAdapter struct {
	client   *Client
	pageSize int
}

// NewStorefrontAdapter creates the storefront adapter.
func NewStorefrontAdapter(client *Client, pageSize int) *StorefrontAdapter {
	if pageSize < 1 || pageSize > 100 {
		pageSize = 100
	}
	return &StorefrontAdapter{client: client, pageSize: pageSize}
}

func (a *StorefrontAdapter) Source() model.Source {
	return model.SourceStorefront
}

// FetchPage fetches one page of search results.
func (a *StorefrontAdapter) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid storefront cursor %q", cursor)
		}
		start = n
	}

	query := map[string]string{
		"appid":    "730",
		"norender": "1",
		"start":    strconv.Itoa(start),
		"count":    strconv.Itoa(a.pageSize),
	}

	var resp storefrontResponse
	if err := a.client.GetJSON(ctx, "/search/render", query, &resp); err != nil {
		return nil, fmt.Errorf("fetch storefront listings: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("storefront reported success=false")
	}

	fetchedAt := time.Now().UTC()
	page := &Page{Records: make([]Record, len(resp.Results))}
	for i := range resp.Results {
		resp.Results[i].fetchedAt = fetchedAt
		page.Records[i] = &resp.Results[i]
	}

	if next := start + len(resp.Results); len(resp.Results) > 0 && next < resp.TotalCount {
		page.NextCursor = strconv.Itoa(next)
	}
	return page, nil
}

type storefrontResponse struct {
	Success    bool               `json:"success"`
	Start      int                `json:"start"`
	TotalCount int                `json:"total_count"`
	Results    []storefrontRecord `json:"results"`
}

type storefrontRecord struct {
	HashName     string `json:"hash_name"`
	Name         string `json:"name"`
	SellListings int    `json:"sell_listings"`
	SellPrice    *int64 `json:"sell_price"` // cents

	fetchedAt time.Time
}

// Normalize maps one storefront search result onto the canonical
// shapes. The storefront has no per-listing identity, so the hash name
// doubles as the native id: one observation per item per state.
func (r *storefrontRecord) Normalize() (model.Item, model.Listing, error) {
	if r.HashName == "" {
		return model.Item{}, model.Listing{}, reject("missing market hash name")
	}
	if r.SellPrice == nil {
		return model.Item{}, model.Listing{}, reject("missing price field")
	}
	if *r.SellPrice <= 0 {
		return model.Item{}, model.Listing{}, reject("non-positive price")
	}

	displayName := r.Name
	if displayName == "" {
		displayName = r.HashName
	}

	item := model.Item{
		MarketHashName: r.HashName,
		DisplayName:    displayName,
		WearTier:       parseWearTier(r.HashName),
		StatTrak:       strings.Contains(r.HashName, "StatTrak"),
		Souvenir:       strings.HasPrefix(r.HashName, "Souvenir "),
	}

	listing := model.Listing{
		MarketHashName: r.HashName,
		Source:         model.SourceStorefront,
		NativeID:       r.HashName,
		PriceCents:     *r.SellPrice,
		ObservedAt:     r.fetchedAt,
		Active:         true,
	}

	return item, listing, nil
}

// parseWearTier extracts the wear tier from a hash name's trailing
// parenthetical, e.g. "AK-47 | Redline (Field-Tested)".
func parseWearTier(hashName string) string {
	open := strings.LastIndex(hashName, "(")
	if open < 0 || !strings.HasSuffix(hashName, ")") {
		return ""
	}
	return hashName[open+1 : len(hashName)-1]
}
