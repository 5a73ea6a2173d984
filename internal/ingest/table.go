package ingest

import (
	"errors"
	"strings"

	"github.com/doorlist/backend/internal/match"
)

var (
	// ErrTooFewColumns indicates the table cannot carry (code, name) rows.
	// Structural: the whole import is rejected, no rows are processed.
	ErrTooFewColumns = errors.New("ingest: table needs at least two columns")
)

// Table is one batch of loosely structured roster rows. Columns holds the
// header cells; Rows may be ragged, with missing cells read as empty.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Recognized header labels, compared after case and whitespace normalization.
// The Cyrillic labels are the ones interchange partners historically send.
var (
	codeHeaderLabels = map[string]struct{}{"код": {}, "code": {}}
	nameHeaderLabels = map[string]struct{}{"фио": {}, "name": {}}
)

// resolveColumns picks the code and name column indexes. Named headers win;
// otherwise the first column is the code and the second the name. Tables with
// fewer than two columns and no named pair are rejected as structural errors.
func resolveColumns(columns []string) (codeIdx, nameIdx int, err error) {
	codeIdx, nameIdx = -1, -1
	for i, column := range columns {
		normalized := match.Normalize(column)
		if _, ok := codeHeaderLabels[normalized]; ok && codeIdx < 0 {
			codeIdx = i
			continue
		}
		if _, ok := nameHeaderLabels[normalized]; ok && nameIdx < 0 {
			nameIdx = i
		}
	}
	if codeIdx >= 0 && nameIdx >= 0 {
		return codeIdx, nameIdx, nil
	}
	if len(columns) >= 2 {
		return 0, 1, nil
	}
	return -1, -1, ErrTooFewColumns
}

// cell returns the trimmed cell at idx, or the empty string when the row is
// too short to carry it.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return trimCell(row[idx])
}

// trimCell trims a raw cell and folds NaN placeholders, which spreadsheet
// exports emit for missing values, to the empty string.
func trimCell(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.EqualFold(trimmed, "nan") {
		return ""
	}
	return trimmed
}
