package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/skinlytics/skinlytics/internal/model"
	"github.com/skinlytics/skinlytics/internal/storage"
)

func TestWriteOpportunities(t *testing.T) {
	ask := int64(4250)
	opps := []storage.Opportunity{
		{
			OpportunityScore: model.OpportunityScore{
				MarketHashName: "Widget A", Score: 82,
				PriceDevScore: 100, LiquidityScore: 60, TrendScore: 55,
				ComputedAt: time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
			},
			DisplayName:  "Widget A",
			BestAskCents: &ask,
		},
		{
			OpportunityScore: model.OpportunityScore{
				MarketHashName: "Widget B", Score: 71,
				ComputedAt: time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
			},
			DisplayName: "Widget B",
			// No active listings: best ask column stays blank.
		},
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := WriteOpportunities(path, opps, time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("WriteOpportunities: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	// Header, two data rows, blank spacer, footer.
	if len(rows) < 3 {
		t.Fatalf("rows = %d, want at least 3", len(rows))
	}

	if rows[0][1] != "Item" || rows[0][2] != "Score" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "Widget A" || rows[1][2] != "82" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[1][6] != "42.5" {
		t.Errorf("best ask = %q, want 42.5", rows[1][6])
	}
	if rows[2][1] != "Widget B" {
		t.Errorf("row 2 = %v", rows[2])
	}
	// Widget B has no ask price.
	if len(rows[2]) > 6 && rows[2][6] != "" {
		t.Errorf("row 2 best ask = %q, want empty", rows[2][6])
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{33.333333, 33.33},
		{66.666666, 66.67},
		{0.005, 0.01},
		{-0.005, -0.01},
		{-33.335, -33.34},
		{50, 50},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriteOpportunities_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	if err := WriteOpportunities(path, nil, time.Now()); err != nil {
		t.Fatalf("WriteOpportunities: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(rows) == 0 || rows[0][0] != "Rank" {
		t.Errorf("header missing: %v", rows)
	}
}
