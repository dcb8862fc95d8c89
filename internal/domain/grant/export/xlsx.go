package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet that holds exported rows.
const SheetName = "Patents"

// maxCellLength is the longest text a spreadsheet cell can hold.
const maxCellLength = 32767

var (
	xlsxHeader = []interface{}{
		"WKU", "Title", "App_Date", "Issue_Date", "Inventor",
		"Assignee", "ICL_Class", "References", "Claims",
	}
	xlsxWidths = []float64{12, 48, 11, 11, 36, 36, 20, 30, 80}
)

// WriteXLSX writes rows to w as a single-sheet workbook.
func WriteXLSX(rows []PatentRow, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}
	for i, width := range xlsxWidths {
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	if err := sw.SetRow("A1", xlsxHeader, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			row.WKU,
			truncateCell(row.Title),
			row.ApplicationDate,
			row.IssueDate,
			truncateCell(row.Inventors),
			truncateCell(row.Assignees),
			truncateCell(row.ClassCodes),
			truncateCell(row.References),
			truncateCell(row.Claims),
		}
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func truncateCell(s string) string {
	if len(s) <= maxCellLength {
		return s
	}
	// avoid cutting a multi-byte character in half
	cut := maxCellLength
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
