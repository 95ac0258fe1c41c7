// Package report renders the daily opportunity report as an xlsx
// workbook, one row per scored item.
package report

import (
	"fmt"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/skinlytics/skinlytics/internal/storage"
)

const sheetName = "Opportunities"

var headers = []string{
	"Rank", "Item", "Score", "Price Dev", "Liquidity", "Trend", "Best Ask (USD)", "Computed At",
}

// WriteOpportunities writes a workbook to path. Rows keep the input
// order, which TopOpportunities already sorts by score.
func WriteOpportunities(path string, opps []storage.Opportunity, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, o := range opps {
		row := i + 2
		values := []any{
			i + 1,
			o.DisplayName,
			o.Score,
			round2(o.PriceDevScore),
			round2(o.LiquidityScore),
			round2(o.TrendScore),
			bestAsk(o.BestAskCents),
			o.ComputedAt.UTC().Format(time.RFC3339),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	if err := f.SetColWidth(sheetName, "B", "B", 42); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "H", "H", 22); err != nil {
		return err
	}

	footer := fmt.Sprintf("Generated %s", generatedAt.UTC().Format(time.RFC3339))
	cell, err := excelize.CoordinatesToCellName(1, len(opps)+3)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheetName, cell, footer); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func bestAsk(cents *int64) any {
	if cents == nil {
		return ""
	}
	return float64(*cents) / 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
