package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/doorlist/backend/internal/roster"
)

// maxReportedErrors caps the error messages carried in a Result. ErrorsCount
// keeps the true total even when the list is truncated.
const maxReportedErrors = 10

var (
	errMissingRoster = errors.New("ingest: roster store is required")
	errMissingCodes  = errors.New("ingest: code provider is required")
	noOpLogger       = zap.NewNop()
)

// Result summarizes one import batch.
type Result struct {
	Added          int
	TotalProcessed int
	Errors         []string
	ErrorsCount    int
}

// ReconcilerConfig describes the dependencies required by the import
// reconciler.
type ReconcilerConfig struct {
	Roster *roster.Store
	Codes  roster.CodeProvider
	Logger *zap.Logger
}

// Reconciler bulk-loads tabular (code, name) rows into the roster. Row
// validation errors are isolated: a bad row is skipped and counted while the
// rest of the batch proceeds. All valid rows commit in a single transaction,
// so a storage failure during commit leaves nothing behind.
type Reconciler struct {
	roster *roster.Store
	codes  roster.CodeProvider
	logger *zap.Logger
}

// NewReconciler constructs the import reconciler.
func NewReconciler(cfg ReconcilerConfig) (*Reconciler, error) {
	if cfg.Roster == nil {
		return nil, errMissingRoster
	}
	if cfg.Codes == nil {
		return nil, errMissingCodes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Reconciler{roster: cfg.Roster, codes: cfg.Codes, logger: logger}, nil
}

// Import processes the table row by row and commits the staged guests at the
// end. Row numbers in error messages are 1-based and offset by the header
// row, matching what a person sees in the spreadsheet.
func (r *Reconciler) Import(ctx context.Context, table Table) (Result, error) {
	codeIdx, nameIdx, err := resolveColumns(table.Columns)
	if err != nil {
		return Result{}, err
	}

	result := Result{TotalProcessed: len(table.Rows)}
	staged := make([]roster.Guest, 0, len(table.Rows))
	stagedCodes := make(map[string]struct{}, len(table.Rows))

	for i, row := range table.Rows {
		rowNumber := i + 2
		code := cell(row, codeIdx)
		name := cell(row, nameIdx)

		if name == "" {
			r.addRowError(&result, fmt.Sprintf("row %d: empty name", rowNumber))
			continue
		}
		if code == "" {
			code = r.codes.NewCode()
		}

		_, duplicate := stagedCodes[code]
		if !duplicate {
			if _, duplicate, err = r.roster.Get(ctx, code); err != nil {
				return Result{}, err
			}
		}
		if duplicate {
			r.addRowError(&result, fmt.Sprintf("row %d: code %q already exists", rowNumber, code))
			continue
		}

		staged = append(staged, roster.Guest{Code: code, Name: name})
		stagedCodes[code] = struct{}{}
	}

	if err := r.roster.AddAll(ctx, staged); err != nil {
		r.logger.Error("import commit failed",
			zap.Int("staged", len(staged)),
			zap.Error(err))
		return Result{}, fmt.Errorf("ingest: commit failed: %w", err)
	}
	result.Added = len(staged)

	r.logger.Info("import completed",
		zap.Int("added", result.Added),
		zap.Int("total_processed", result.TotalProcessed),
		zap.Int("errors", result.ErrorsCount))
	return result, nil
}

func (r *Reconciler) addRowError(result *Result, message string) {
	result.ErrorsCount++
	if len(result.Errors) < maxReportedErrors {
		result.Errors = append(result.Errors, message)
	}
}
