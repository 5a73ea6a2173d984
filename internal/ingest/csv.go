package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ParseCSV reads comma-separated rows into a Table. The first record is the
// header; records may be ragged.
func ParseCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("ingest: read csv: %w", err)
	}
	if len(records) == 0 {
		return Table{}, ErrEmptyInput
	}
	return Table{Columns: records[0], Rows: records[1:]}, nil
}
