package io

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"
)

const sheet = "Sheet1"

// TableToXLSX saves a table as a single-sheet workbook. NaN cells are left blank.
func TableToXLSX(path string, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, h := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("[TableToXLSX] %s: %w", path, err)
		}
	}

	for r, row := range t.Rows {
		for c, v := range row {
			if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("[TableToXLSX] %s: %w", path, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("[TableToXLSX] failed to save %s: %w", path, err)
	}
	return nil
}
