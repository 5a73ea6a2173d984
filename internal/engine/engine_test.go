package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/doorlist/backend/internal/ingest"
	"github.com/doorlist/backend/internal/ledger"
	"github.com/doorlist/backend/internal/match"
	"github.com/doorlist/backend/internal/roster"
)

type staticCodeProvider struct {
	next int
}

func (p *staticCodeProvider) NewCode() string {
	p.next++
	return fmt.Sprintf("GEN-%d", p.next)
}

func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:engine_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&roster.Guest{}, &ledger.Mark{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	store, err := roster.NewStore(roster.StoreConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct roster store: %v", err)
	}
	codes := &staticCodeProvider{}
	checkInLedger, err := ledger.NewService(ledger.ServiceConfig{
		Database: db,
		Roster:   store,
		Clock:    func() time.Time { return time.Unix(1700000600, 0).UTC() },
	})
	if err != nil {
		t.Fatalf("failed to construct ledger: %v", err)
	}
	importer, err := ingest.NewReconciler(ingest.ReconcilerConfig{Roster: store, Codes: codes})
	if err != nil {
		t.Fatalf("failed to construct reconciler: %v", err)
	}

	reconciliationEngine, err := New(Config{
		Database: db,
		Roster:   store,
		Ledger:   checkInLedger,
		Importer: importer,
		Codes:    codes,
	})
	if err != nil {
		t.Fatalf("failed to construct engine: %v", err)
	}
	return reconciliationEngine, db
}

func TestAddGuestSynthesizesCode(t *testing.T) {
	reconciliationEngine, _ := newTestEngine(t)
	ctx := context.Background()

	guest, err := reconciliationEngine.AddGuest(ctx, "", "Walk In")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if guest.Code != "GEN-1" {
		t.Fatalf("expected synthesized code, got %q", guest.Code)
	}

	if _, err := reconciliationEngine.AddGuest(ctx, "", "   "); !errors.Is(err, roster.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestEndToEndSearchAndCheckIn(t *testing.T) {
	reconciliationEngine, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := reconciliationEngine.AddGuest(ctx, "A1", "Ivan Petrov"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := reconciliationEngine.Search(ctx, "petrov ivan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Code != "A1" || results[0].Scanned {
		t.Fatalf("unexpected search results %+v", results)
	}

	first, err := reconciliationEngine.MarkIn(ctx, "A1", ledger.MethodSearch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.AlreadyMarked {
		t.Fatalf("first check-in must not report already marked")
	}

	second, err := reconciliationEngine.MarkIn(ctx, "A1", ledger.MethodManual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.AlreadyMarked || second.Method != ledger.MethodManual {
		t.Fatalf("unexpected repeat result %+v", second)
	}

	results, err = reconciliationEngine.Search(ctx, "petrov ivan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !results[0].Scanned {
		t.Fatalf("expected search to reflect the check-in")
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	reconciliationEngine, _ := newTestEngine(t)

	if _, err := reconciliationEngine.Search(context.Background(), "  "); !errors.Is(err, match.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestFindAndCheckInMarksSingleCandidate(t *testing.T) {
	reconciliationEngine, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := reconciliationEngine.AddGuest(ctx, "A1", "Ivan Petrov"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := reconciliationEngine.AddGuest(ctx, "B2", "Anna Karenina"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := reconciliationEngine.FindAndCheckIn(ctx, "ivan petrov", ledger.MethodSearch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeMarked {
		t.Fatalf("expected marked outcome, got %q", result.Outcome)
	}
	if result.Mark == nil || result.Mark.Code != "A1" || result.Mark.AlreadyMarked {
		t.Fatalf("unexpected mark %+v", result.Mark)
	}

	repeat, err := reconciliationEngine.FindAndCheckIn(ctx, "ivan petrov", ledger.MethodSearch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repeat.Outcome != OutcomeAlreadyMarked {
		t.Fatalf("expected already-marked outcome, got %q", repeat.Outcome)
	}
	if repeat.Mark != nil {
		t.Fatalf("already-marked outcome must not mutate the ledger")
	}
}

func TestFindAndCheckInReportsNoMatch(t *testing.T) {
	reconciliationEngine, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := reconciliationEngine.AddGuest(ctx, "A1", "Ivan Petrov"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := reconciliationEngine.FindAndCheckIn(ctx, "zed", ledger.MethodSearch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeNoMatch || len(result.Matches) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestFindAndCheckInLeavesAmbiguityToCaller(t *testing.T) {
	reconciliationEngine, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := reconciliationEngine.AddGuest(ctx, "A1", "Ivan Petrov"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := reconciliationEngine.AddGuest(ctx, "B2", "Ivan Petrenko"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := reconciliationEngine.FindAndCheckIn(ctx, "ivan", ledger.MethodSearch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeAmbiguous {
		t.Fatalf("expected ambiguous outcome, got %q", result.Outcome)
	}
	if len(result.Matches) != 2 {
		t.Fatalf("expected both candidates, got %d", len(result.Matches))
	}

	stats, err := reconciliationEngine.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalScanned != 0 {
		t.Fatalf("ambiguous queries must not mark anyone, got %d marks", stats.TotalScanned)
	}
}

func TestImportRosterFeedsSearch(t *testing.T) {
	reconciliationEngine, _ := newTestEngine(t)
	ctx := context.Background()

	result, err := reconciliationEngine.ImportRoster(ctx, ingest.Table{
		Columns: []string{"Код", "ФИО"},
		Rows:    [][]string{{"A1", "Ivan Petrov"}, {"", "Anna Karenina"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Added != 2 {
		t.Fatalf("expected 2 added guests, got %+v", result)
	}

	results, err := reconciliationEngine.Search(ctx, "anna karenina")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Code != "GEN-1" {
		t.Fatalf("unexpected search results %+v", results)
	}
}

func TestClearAllWipesBothCollections(t *testing.T) {
	reconciliationEngine, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := reconciliationEngine.AddGuest(ctx, fmt.Sprintf("C%d", i), fmt.Sprintf("Guest %d", i)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := reconciliationEngine.MarkIn(ctx, "C0", ledger.MethodQR); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cleared, err := reconciliationEngine.ClearAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleared.DeletedGuests != 3 || cleared.DeletedMarks != 1 {
		t.Fatalf("unexpected clear result %+v", cleared)
	}

	guests, err := reconciliationEngine.ListGuests(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(guests) != 0 {
		t.Fatalf("expected empty roster, got %d guests", len(guests))
	}

	stats, err := reconciliationEngine.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalGuests != 0 || stats.TotalScanned != 0 {
		t.Fatalf("expected zeroed stats, got %+v", stats)
	}
}

func TestStatsCountsGuestsAndMarks(t *testing.T) {
	reconciliationEngine, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := reconciliationEngine.AddGuest(ctx, fmt.Sprintf("C%d", i), fmt.Sprintf("Guest %d", i)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := reconciliationEngine.MarkIn(ctx, fmt.Sprintf("C%d", i), ledger.MethodQR); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stats, err := reconciliationEngine.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalGuests != 5 || stats.TotalScanned != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
