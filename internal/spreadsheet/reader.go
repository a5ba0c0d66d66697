package spreadsheet

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/UnknownOlympus/cartograph/internal/config"
	"github.com/UnknownOlympus/cartograph/internal/models"
	"github.com/xuri/excelize/v2"
)

// Common errors for the address reader.
var (
	ErrNoSheets       = errors.New("workbook has no worksheets")
	ErrReaderConsumed = errors.New("address reader can only be iterated once")
)

// headerRows is the number of leading rows that are not data.
const headerRows = 1

// AddressReader streams addresses from a fixed column of the active worksheet.
type AddressReader struct {
	file     *excelize.File
	sheet    string
	column   int
	log      *slog.Logger
	consumed bool
}

// OpenAddressReader opens the workbook at path and prepares to read the
// 1-based column of its active worksheet.
func OpenAddressReader(path string, column int, log *slog.Logger) (*AddressReader, error) {
	if column < 1 {
		return nil, fmt.Errorf("%w: %d", config.ErrInvalidColumn, column)
	}

	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input workbook: %w", err)
	}

	sheet := file.GetSheetName(file.GetActiveSheetIndex())
	if sheet == "" {
		if list := file.GetSheetList(); len(list) > 0 {
			sheet = list[0]
		}
	}
	if sheet == "" {
		_ = file.Close()
		return nil, ErrNoSheets
	}

	log.Debug("Input workbook opened", "path", path, "sheet", sheet, "column", column)

	return &AddressReader{file: file, sheet: sheet, column: column, log: log}, nil
}

// Sheet returns the name of the worksheet being read.
func (r *AddressReader) Sheet() string {
	return r.sheet
}

// Addresses yields one record per non-blank address cell, in sheet order,
// skipping the header row. Cell text is yielded as stored. Reading stops at the first row error, which is
// yielded with a zero record. The sequence can be ranged over only once.
func (r *AddressReader) Addresses() iter.Seq2[models.AddressRecord, error] {
	return func(yield func(models.AddressRecord, error) bool) {
		if r.consumed {
			yield(models.AddressRecord{}, ErrReaderConsumed)
			return
		}
		r.consumed = true

		rows, err := r.file.Rows(r.sheet)
		if err != nil {
			yield(models.AddressRecord{}, fmt.Errorf("failed to iterate rows: %w", err))
			return
		}
		defer rows.Close()

		for rowNum := 1; rows.Next(); rowNum++ {
			cols, errCols := rows.Columns()
			if errCols != nil {
				yield(models.AddressRecord{}, fmt.Errorf("failed to read row %d: %w", rowNum, errCols))
				return
			}
			if rowNum <= headerRows {
				continue
			}
			if len(cols) < r.column {
				continue
			}

			address := cols[r.column-1]
			if strings.TrimSpace(address) == "" {
				r.log.Debug("Skipping blank address cell", "row", rowNum)
				continue
			}

			if !yield(models.AddressRecord{Row: rowNum, Address: address}, nil) {
				return
			}
		}

		if err = rows.Error(); err != nil {
			yield(models.AddressRecord{}, fmt.Errorf("failed to read row: %w", err))
		}
	}
}

// Close releases the workbook.
func (r *AddressReader) Close() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close input workbook: %w", err)
	}

	return nil
}
