package spreadsheet

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/UnknownOlympus/cartograph/internal/models"
	"github.com/xuri/excelize/v2"
)

// OutputSheet is the name of the single worksheet of the output workbook.
const OutputSheet = "Sheet1"

const outputPerm = 0o644

// Header returns the fixed header row of the output sheet.
func Header() []any {
	return []any{"Address", "Latitude", "Longitude", "Status"}
}

// ResultTable accumulates output rows in memory until Save.
type ResultTable struct {
	rows [][]any
}

// NewResultTable returns a table holding only the header row.
func NewResultTable() *ResultTable {
	return &ResultTable{rows: [][]any{Header()}}
}

// Row projects a record and its geocoding outcome to an output row.
func Row(record models.AddressRecord, result models.GeocodeResult) []any {
	if result.OK() {
		return []any{
			record.Address,
			result.Coordinates.Latitude,
			result.Coordinates.Longitude,
			models.LabelSuccess,
		}
	}

	return []any{record.Address, models.LabelNotFound, models.LabelNotFound, models.LabelFailed}
}

// Append adds one row for the record.
func (t *ResultTable) Append(record models.AddressRecord, result models.GeocodeResult) {
	t.rows = append(t.rows, Row(record, result))
}

// Len returns the number of data rows, header excluded.
func (t *ResultTable) Len() int {
	return len(t.rows) - 1
}

// Rows returns a copy of all rows, header first.
func (t *ResultTable) Rows() [][]any {
	out := make([][]any, len(t.rows))
	for i, row := range t.rows {
		out[i] = append([]any(nil), row...)
	}
	return out
}

// Save writes the table to path. The workbook is written to a temporary file
// next to path and renamed over it, so path is either fully replaced or left
// untouched.
func (t *ResultTable) Save(path string) error {
	file := excelize.NewFile()
	defer file.Close()

	for i, row := range t.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to address output row %d: %w", i+1, err)
		}
		if err = file.SetSheetRow(OutputSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write output row %d: %w", i+1, err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary output file: %w", err)
	}
	tmpName := tmp.Name()

	if err = tmp.Chmod(outputPerm); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set output file mode: %w", err)
	}
	if err = file.Write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write output workbook: %w", err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temporary output file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace output file: %w", err)
	}

	return nil
}
