package ingest

import (
	"errors"
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize"
)

// ErrEmptyInput indicates the source carries no header row. Structural, like
// ErrTooFewColumns.
var ErrEmptyInput = errors.New("ingest: input has no rows")

// ParseXLSX reads the first sheet of an Excel workbook into a Table. The
// first row is the header; the remaining rows are the batch.
func ParseXLSX(r io.Reader) (Table, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("ingest: read workbook: %w", err)
	}

	sheet := workbook.GetSheetName(1)
	rows := workbook.GetRows(sheet)
	if len(rows) == 0 {
		return Table{}, ErrEmptyInput
	}
	return Table{Columns: rows[0], Rows: rows[1:]}, nil
}
