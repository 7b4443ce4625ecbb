package io

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Table is a named-column table. Cells are float64, int or string.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Append adds one row
func (t *Table) Append(cells ...any) {
	t.Rows = append(t.Rows, cells)
}

// DenseTable returns a table with one row per matrix row under the given column names
func DenseTable(columns []string, matrix *mat.Dense) Table {
	rows, _ := matrix.Dims()
	t := Table{Columns: columns}

	for i := 0; i < rows; i++ {
		row := matrix.RawRowView(i)
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		t.Append(cells...)
	}

	return t
}

// formatCell renders a cell the way it appears in a csv file; NaN is left empty
func formatCell(v any) string {
	switch c := v.(type) {
	case float64:
		if math.IsNaN(c) {
			return ""
		}
		return strconv.FormatFloat(c, 'g', -1, 64)
	case int:
		return strconv.Itoa(c)
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}

// TableToCSV saves a table as a csv file with a header line
func TableToCSV(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("[TableToCSV] failed to open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("[TableToCSV] %s: %w", path, err)
	}

	line := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("[TableToCSV] %s: row has %d cells for %d columns", path, len(row), len(t.Columns))
		}
		for i, cell := range row {
			line[i] = formatCell(cell)
		}
		if err := w.Write(line); err != nil {
			return fmt.Errorf("[TableToCSV] %s: %w", path, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("[TableToCSV] %s: %w", path, err)
	}

	return f.Close()
}
