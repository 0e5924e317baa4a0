package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/elliotlarson/angel-charity-silent-auction-receipts-sub000/internal"
)

// ExportLineItemsToXLSX writes the reconciled state to a workbook, one row
// per line item in number and position order.
func ExportLineItemsToXLSX(rows []internal.LineItemRecord, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"number", "position", "title", "description", "value",
		"categories", "notes", "expiration", "content_hash",
		"created_at", "updated_at",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.Number)
		set(2, row.Position)
		set(3, row.Title)
		set(4, row.Description)
		set(5, row.Value)
		set(6, strings.Join(row.Categories, "; "))
		set(7, row.Notes)
		set(8, row.Expiration)
		set(9, row.ContentHash)
		set(10, row.CreatedAt)
		set(11, row.UpdatedAt)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
