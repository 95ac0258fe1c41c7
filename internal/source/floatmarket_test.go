package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skinlytics/skinlytics/internal/model"
)

const floatMarketPage = `{
  "data": [
    {
      "id": "728540",
      "price": 4250,
      "created_at": "2025-06-01T09:58:11Z",
      "item": {
        "market_hash_name": "AK-47 | Redline (Field-Tested)",
        "item_name": "AK-47 | Redline",
        "wear_name": "Field-Tested",
        "rarity_name": "Classified",
        "collection": "The Phoenix Collection",
        "is_stattrak": false,
        "is_souvenir": false,
        "float_value": 0.253117,
        "paint_seed": 661
      },
      "seller": {
        "statistics": {
          "total_trades": 152,
          "total_verified_trades": 148,
          "total_failed_trades": 1,
          "median_trade_time": 2040
        }
      }
    },
    {
      "id": "728541",
      "created_at": "2025-06-01T09:59:02Z",
      "item": {
        "market_hash_name": "AWP | Asiimov (Field-Tested)"
      }
    }
  ],
  "cursor": "eyJwYWdlIjoyfQ"
}`

func TestFloatMarketAdapter_FetchPage(t *testing.T) {
	var gotAuth, gotCursor, gotLimit string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/listings" {
			t.Errorf("path = %q, want /listings", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotCursor = r.URL.Query().Get("cursor")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(floatMarketPage))
	}))
	defer server.Close()

	client := NewClient(server.URL, WithCredential("Authorization", "test-key"))
	a := NewFloatMarketAdapter(client, 2)

	page, err := a.FetchPage(context.Background(), "abc")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	if gotAuth != "test-key" {
		t.Errorf("credential header = %q, want test-key", gotAuth)
	}
	if gotCursor != "abc" {
		t.Errorf("cursor param = %q, want abc", gotCursor)
	}
	if gotLimit != "2" {
		t.Errorf("limit param = %q, want 2", gotLimit)
	}
	if len(page.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(page.Records))
	}
	if page.NextCursor != "eyJwYWdlIjoyfQ" {
		t.Errorf("NextCursor = %q", page.NextCursor)
	}
}

func TestFloatMarketAdapter_ShortPageEndsFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(floatMarketPage))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	a := NewFloatMarketAdapter(client, 50) // page holds 2 records < 50

	page, err := a.FetchPage(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty for a short page", page.NextCursor)
	}
}

func TestFloatMarketRecord_Normalize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(floatMarketPage))
	}))
	defer server.Close()

	a := NewFloatMarketAdapter(NewClient(server.URL), 2)
	page, err := a.FetchPage(context.Background(), "")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	item, listing, err := page.Records[0].Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if item.MarketHashName != "AK-47 | Redline (Field-Tested)" {
		t.Errorf("item key = %q", item.MarketHashName)
	}
	if item.WearTier != "Field-Tested" || item.Rarity != "Classified" {
		t.Errorf("item metadata = %+v", item)
	}
	if listing.Source != model.SourceFloatMarket {
		t.Errorf("Source = %q", listing.Source)
	}
	if listing.NativeID != "728540" {
		t.Errorf("NativeID = %q", listing.NativeID)
	}
	if listing.PriceCents != 4250 {
		t.Errorf("PriceCents = %d", listing.PriceCents)
	}
	if listing.FloatValue == nil || *listing.FloatValue != 0.253117 {
		t.Errorf("FloatValue = %v", listing.FloatValue)
	}
	if listing.PaintSeed == nil || *listing.PaintSeed != 661 {
		t.Errorf("PaintSeed = %v", listing.PaintSeed)
	}
	if listing.Trust.Trades != 152 || listing.Trust.MedianTradeMinutes != 34 {
		t.Errorf("Trust = %+v", listing.Trust)
	}
	if listing.ObservedAt.IsZero() {
		t.Error("ObservedAt is zero")
	}
	if !listing.Active {
		t.Error("Active = false, want true on ingest")
	}

	// Second record is missing its price: rejected, reason names the field.
	_, _, err = page.Records[1].Normalize()
	reason, ok := RejectReason(err)
	if !ok {
		t.Fatalf("Normalize err = %v, want RejectError", err)
	}
	if reason != "missing price field" {
		t.Errorf("reason = %q, want %q", reason, "missing price field")
	}
}

func TestFloatMarketRecord_NormalizeInvalid(t *testing.T) {
	base := floatMarketRecord{
		ID:    "1",
		Price: int64Ptr(1000),
		Item:  floatMarketItem{MarketHashName: "Glock-18 | Fade (Factory New)"},
	}

	tests := []struct {
		name       string
		mutate     func(*floatMarketRecord)
		wantReason string
	}{
		{"missing item key", func(r *floatMarketRecord) { r.Item.MarketHashName = "" }, "missing market hash name"},
		{"missing listing id", func(r *floatMarketRecord) { r.ID = "" }, "missing listing id"},
		{"missing price", func(r *floatMarketRecord) { r.Price = nil }, "missing price field"},
		{"negative price", func(r *floatMarketRecord) { r.Price = int64Ptr(-50) }, "non-positive price"},
		{"float above 1", func(r *floatMarketRecord) { r.Item.FloatValue = float64Ptr(1.2) }, "float value outside [0,1]"},
		{"float below 0", func(r *floatMarketRecord) { r.Item.FloatValue = float64Ptr(-0.1) }, "float value outside [0,1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)

			_, _, err := r.Normalize()
			reason, ok := RejectReason(err)
			if !ok {
				t.Fatalf("Normalize err = %v, want RejectError", err)
			}
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
		})
	}
}

func int64Ptr(v int64) *int64 { return &v }
func float64Ptr(v float64) *float64 { return &v }
