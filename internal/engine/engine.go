package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/doorlist/backend/internal/ingest"
	"github.com/doorlist/backend/internal/ledger"
	"github.com/doorlist/backend/internal/match"
	"github.com/doorlist/backend/internal/roster"
)

var (
	errMissingDatabase = errors.New("engine: database handle is required")
	errMissingRoster   = errors.New("engine: roster store is required")
	errMissingLedger   = errors.New("engine: check-in ledger is required")
	errMissingImporter = errors.New("engine: import reconciler is required")
	errMissingCodes    = errors.New("engine: code provider is required")
	noOpLogger         = zap.NewNop()
)

// Config describes the dependencies required by the reconciliation engine.
type Config struct {
	Database *gorm.DB
	Roster   *roster.Store
	Ledger   *ledger.Service
	Importer *ingest.Reconciler
	Codes    roster.CodeProvider
	Logger   *zap.Logger
}

// Engine is the façade external callers bind to. It orchestrates the matcher,
// the roster store and the check-in ledger, and owns the cross-store
// operations (clear, stats) that must be atomic.
type Engine struct {
	db       *gorm.DB
	roster   *roster.Store
	ledger   *ledger.Service
	importer *ingest.Reconciler
	codes    roster.CodeProvider
	logger   *zap.Logger
}

// New constructs the reconciliation engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Roster == nil {
		return nil, errMissingRoster
	}
	if cfg.Ledger == nil {
		return nil, errMissingLedger
	}
	if cfg.Importer == nil {
		return nil, errMissingImporter
	}
	if cfg.Codes == nil {
		return nil, errMissingCodes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Engine{
		db:       cfg.Database,
		roster:   cfg.Roster,
		ledger:   cfg.Ledger,
		importer: cfg.Importer,
		codes:    cfg.Codes,
		logger:   logger,
	}, nil
}

// AddGuest registers a guest, synthesizing a code when none is supplied.
func (e *Engine) AddGuest(ctx context.Context, code, name string) (roster.Guest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return roster.Guest{}, roster.ErrEmptyName
	}
	code = strings.TrimSpace(code)
	if code == "" {
		code = e.codes.NewCode()
	}
	return e.roster.Add(ctx, code, name)
}

// MarkIn records a check-in for the code.
func (e *Engine) MarkIn(ctx context.Context, code string, method ledger.Method) (ledger.MarkResult, error) {
	return e.ledger.MarkIn(ctx, code, method)
}

// SearchResult is one ranked search hit with its check-in status.
type SearchResult struct {
	Code    string
	Name    string
	Scanned bool
}

// Search ranks the live roster against the query. The candidate enumeration
// order fed to the matcher is the store's list order, so results are
// deterministic for a fixed roster snapshot.
func (e *Engine) Search(ctx context.Context, query string) ([]SearchResult, error) {
	guests, err := e.roster.List(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := match.Match(query, guests)
	if err != nil {
		return nil, err
	}
	marks, err := e.ledger.All(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, candidate := range candidates {
		_, scanned := marks[candidate.Guest.Code]
		results = append(results, SearchResult{
			Code:    candidate.Guest.Code,
			Name:    candidate.Guest.Name,
			Scanned: scanned,
		})
	}
	e.logger.Info("search completed",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results, nil
}

// FindOutcomeType discriminates the result of FindAndCheckIn.
type FindOutcomeType string

const (
	// OutcomeNoMatch means no candidate survived matching.
	OutcomeNoMatch FindOutcomeType = "no_match"
	// OutcomeMarked means a single unmarked candidate was checked in.
	OutcomeMarked FindOutcomeType = "marked"
	// OutcomeAlreadyMarked means the single candidate already had a mark;
	// the ledger was left untouched.
	OutcomeAlreadyMarked FindOutcomeType = "already_marked"
	// OutcomeAmbiguous means several candidates matched; the caller must
	// pick one and submit it through the mark path.
	OutcomeAmbiguous FindOutcomeType = "ambiguous"
)

// FindResult reports the outcome of a find-and-check-in request. Matches is
// always the ranked candidate list; Mark is set only for OutcomeMarked.
type FindResult struct {
	Outcome FindOutcomeType
	Matches []SearchResult
	Mark    *ledger.MarkResult
}

// FindAndCheckIn runs the matcher against the live roster and checks in the
// guest when the query resolves to exactly one unmarked candidate. Ambiguous
// queries mutate nothing.
func (e *Engine) FindAndCheckIn(ctx context.Context, query string, method ledger.Method) (FindResult, error) {
	matches, err := e.Search(ctx, query)
	if err != nil {
		return FindResult{}, err
	}

	switch {
	case len(matches) == 0:
		return FindResult{Outcome: OutcomeNoMatch}, nil
	case len(matches) > 1:
		return FindResult{Outcome: OutcomeAmbiguous, Matches: matches}, nil
	}

	single := matches[0]
	if single.Scanned {
		return FindResult{Outcome: OutcomeAlreadyMarked, Matches: matches}, nil
	}

	mark, err := e.ledger.MarkIn(ctx, single.Code, method)
	if err != nil {
		return FindResult{}, err
	}
	return FindResult{Outcome: OutcomeMarked, Matches: matches, Mark: &mark}, nil
}

// ImportRoster bulk-loads tabular rows into the roster.
func (e *Engine) ImportRoster(ctx context.Context, table ingest.Table) (ingest.Result, error) {
	return e.importer.Import(ctx, table)
}

// ListGuests returns the roster ordered by name ascending.
func (e *Engine) ListGuests(ctx context.Context) ([]roster.Guest, error) {
	return e.roster.List(ctx)
}

// ClearResult reports how many rows a full wipe removed.
type ClearResult struct {
	DeletedGuests int64
	DeletedMarks  int64
}

// ClearAll wipes the roster and the ledger in one transaction: readers never
// observe guests cleared while marks remain, or the reverse.
func (e *Engine) ClearAll(ctx context.Context) (ClearResult, error) {
	var cleared ClearResult
	txErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marks := tx.Where("1 = 1").Delete(&ledger.Mark{})
		if marks.Error != nil {
			return fmt.Errorf("engine: mark wipe failed: %w", marks.Error)
		}
		guests := tx.Where("1 = 1").Delete(&roster.Guest{})
		if guests.Error != nil {
			return fmt.Errorf("engine: guest wipe failed: %w", guests.Error)
		}
		cleared = ClearResult{
			DeletedGuests: guests.RowsAffected,
			DeletedMarks:  marks.RowsAffected,
		}
		return nil
	})
	if txErr != nil {
		e.logger.Error("clear all failed", zap.Error(txErr))
		return ClearResult{}, txErr
	}

	e.logger.Warn("all data cleared",
		zap.Int64("deleted_guests", cleared.DeletedGuests),
		zap.Int64("deleted_marks", cleared.DeletedMarks))
	return cleared, nil
}

// Stats reports roster and check-in totals from one consistent snapshot.
type Stats struct {
	TotalGuests  int64
	TotalScanned int64
}

// Stats counts guests and marks inside a single transaction so the pair is
// point-in-time consistent.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	txErr := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&roster.Guest{}).Count(&stats.TotalGuests).Error; err != nil {
			return fmt.Errorf("engine: guest count failed: %w", err)
		}
		if err := tx.Model(&ledger.Mark{}).Count(&stats.TotalScanned).Error; err != nil {
			return fmt.Errorf("engine: mark count failed: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return Stats{}, txErr
	}
	return stats, nil
}
