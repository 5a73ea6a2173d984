package database

import (
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/doorlist/backend/internal/ledger"
	"github.com/doorlist/backend/internal/roster"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
// The pool is pinned to a single connection; sqlite is the single
// authoritative store and serializes writers.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := dedupeLegacyMarks(db); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&roster.Guest{}, &ledger.Mark{}, &migrationRecord{}); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// dedupeLegacyMarks collapses duplicate marks per code before AutoMigrate
// builds the unique index. Databases written before the one-mark-per-code
// index existed can hold several rows for a code; only the newest survives.
func dedupeLegacyMarks(db *gorm.DB) error {
	if !db.Migrator().HasTable("marks") {
		return nil
	}
	return db.Exec("DELETE FROM marks WHERE id NOT IN (SELECT MAX(id) FROM marks GROUP BY code);").Error
}
