package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("roster: database handle is required")
	noOpLogger         = zap.NewNop()
)

// StoreConfig describes the dependencies required by the roster store.
type StoreConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Store is the durable set of guests keyed by unique code. Codes stay unique
// for the lifetime of the store between clears; uniqueness is enforced by the
// store's index, not only by the pre-insert check.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore constructs the roster store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{db: cfg.Database, logger: logger}, nil
}

// Add inserts a guest. The code must already be non-empty; callers synthesize
// codes before adding. Returns ErrDuplicateCode when the code is present,
// including when a concurrent add wins the race to the unique index.
func (s *Store) Add(ctx context.Context, code, name string) (Guest, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if name == "" {
		return Guest{}, ErrEmptyName
	}
	if code == "" {
		return Guest{}, ErrEmptyCode
	}

	guest := Guest{Code: code, Name: name}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Guest
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).
			Take(&existing).Error
		if err == nil {
			return ErrDuplicateCode
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("roster: guest lookup failed: %w", err)
		}
		if err := tx.Create(&guest).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateCode
			}
			return fmt.Errorf("roster: guest insert failed: %w", err)
		}
		return nil
	})
	if txErr != nil {
		if !errors.Is(txErr, ErrDuplicateCode) {
			s.logger.Error("guest add failed", zap.String("code", code), zap.Error(txErr))
		}
		return Guest{}, txErr
	}

	s.logger.Info("guest added", zap.String("code", code))
	return guest, nil
}

// AddAll inserts the provided guests in a single transaction. Either every
// guest persists or none do; import batches rely on this during commit.
func (s *Store) AddAll(ctx context.Context, guests []Guest) error {
	if len(guests) == 0 {
		return nil
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range guests {
			if err := tx.Create(&guests[i]).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: %s", ErrDuplicateCode, guests[i].Code)
				}
				return fmt.Errorf("roster: batch insert failed: %w", err)
			}
		}
		return nil
	})
	if txErr != nil {
		s.logger.Error("guest batch insert failed", zap.Int("guests", len(guests)), zap.Error(txErr))
		return txErr
	}
	return nil
}

// Get returns the guest for the code, reporting presence via the bool.
func (s *Store) Get(ctx context.Context, code string) (Guest, bool, error) {
	var guest Guest
	err := s.db.WithContext(ctx).
		Where("code = ?", strings.TrimSpace(code)).
		Take(&guest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Guest{}, false, nil
	}
	if err != nil {
		return Guest{}, false, fmt.Errorf("roster: guest lookup failed: %w", err)
	}
	return guest, true, nil
}

// List returns every guest ordered by name ascending.
func (s *Store) List(ctx context.Context) ([]Guest, error) {
	var guests []Guest
	if err := s.db.WithContext(ctx).
		Order("name ASC").
		Find(&guests).Error; err != nil {
		return nil, fmt.Errorf("roster: guest list failed: %w", err)
	}
	return guests, nil
}

// Count returns the number of registered guests.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Guest{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("roster: guest count failed: %w", err)
	}
	return total, nil
}

// Clear removes every guest and returns the number removed. Callers that also
// need the check-in ledger wiped must coordinate both deletes in one
// transaction at the orchestration layer.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("1 = 1").Delete(&Guest{})
	if result.Error != nil {
		return 0, fmt.Errorf("roster: clear failed: %w", result.Error)
	}
	s.logger.Warn("roster cleared", zap.Int64("deleted", result.RowsAffected))
	return result.RowsAffected, nil
}
