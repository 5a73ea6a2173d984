package roster

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:roster_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Guest{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	store, err := NewStore(StoreConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct roster store: %v", err)
	}
	return store, db
}

func TestStoreAddAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	guest, err := store.Add(ctx, " A1 ", "  Ivan Petrov ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if guest.Code != "A1" || guest.Name != "Ivan Petrov" {
		t.Fatalf("expected trimmed guest, got %+v", guest)
	}

	stored, found, err := store.Get(ctx, "A1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatalf("expected guest to be found")
	}
	if stored.Name != "Ivan Petrov" {
		t.Fatalf("unexpected stored name %q", stored.Name)
	}

	if _, found, err := store.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected absent code to report not found, got found=%v err=%v", found, err)
	}
}

func TestStoreAddRejectsEmptyFields(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, "A1", "   "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := store.Add(ctx, "  ", "Ivan"); !errors.Is(err, ErrEmptyCode) {
		t.Fatalf("expected ErrEmptyCode, got %v", err)
	}
}

func TestStoreAddRejectsDuplicateCode(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, "A1", "Ivan Petrov"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Add(ctx, "A1", "Another Ivan"); !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}

	var total int64
	if err := db.Model(&Guest{}).Where("code = ?", "A1").Count(&total).Error; err != nil {
		t.Fatalf("failed to count guests: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected exactly one guest for the code, got %d", total)
	}
}

func TestStoreListOrdersByName(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, guest := range []struct{ code, name string }{
		{"C3", "Zoya"},
		{"A1", "Anna"},
		{"B2", "Ivan"},
	} {
		if _, err := store.Add(ctx, guest.code, guest.name); err != nil {
			t.Fatalf("failed to seed guest: %v", err)
		}
	}

	guests, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(guests) != 3 {
		t.Fatalf("expected 3 guests, got %d", len(guests))
	}
	for i, expected := range []string{"Anna", "Ivan", "Zoya"} {
		if guests[i].Name != expected {
			t.Fatalf("expected %s at position %d, got %s", expected, i, guests[i].Name)
		}
	}
}

func TestStoreAddAllIsAtomic(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Add(ctx, "EXISTS", "Already Here"); err != nil {
		t.Fatalf("failed to seed guest: %v", err)
	}

	batch := []Guest{
		{Code: "N1", Name: "New One"},
		{Code: "EXISTS", Name: "Collides"},
		{Code: "N2", Name: "New Two"},
	}
	if err := store.AddAll(ctx, batch); !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}

	var total int64
	if err := db.Model(&Guest{}).Count(&total).Error; err != nil {
		t.Fatalf("failed to count guests: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected failed batch to leave nothing behind, got %d guests", total)
	}

	if err := store.AddAll(ctx, []Guest{{Code: "N1", Name: "New One"}, {Code: "N2", Name: "New Two"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 guests after successful batch, got %d", count)
	}
}

func TestStoreClearRemovesEverything(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := store.Add(ctx, fmt.Sprintf("C%d", i), fmt.Sprintf("Guest %d", i)); err != nil {
			t.Fatalf("failed to seed guest: %v", err)
		}
	}

	deleted, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 4 {
		t.Fatalf("expected 4 deletions, got %d", deleted)
	}

	guests, err := store.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(guests) != 0 {
		t.Fatalf("expected empty roster, got %d guests", len(guests))
	}

	// Codes are reusable after a clear.
	if _, err := store.Add(ctx, "C0", "Guest 0"); err != nil {
		t.Fatalf("expected code to be reusable after clear: %v", err)
	}
}
