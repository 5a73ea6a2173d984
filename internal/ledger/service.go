package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/doorlist/backend/internal/roster"
)

var (
	errMissingDatabase = errors.New("ledger: database handle is required")
	errMissingRoster   = errors.New("ledger: roster store is required")
	noOpLogger         = zap.NewNop()
)

// ServiceConfig describes the dependencies required by the check-in ledger.
type ServiceConfig struct {
	Database *gorm.DB
	Roster   *roster.Store
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service is the durable check-in ledger. Check-ins are idempotent per code:
// repeated attempts never produce more than one mark and are safe to retry.
type Service struct {
	db     *gorm.DB
	roster *roster.Store
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the ledger service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Roster == nil {
		return nil, errMissingRoster
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, roster: cfg.Roster, clock: clock, logger: logger}, nil
}

// MarkIn records a check-in for the code. The first check-in creates the mark;
// later ones overwrite name, method and timestamp in place and report
// AlreadyMarked. Returns ErrCodeNotFound when the code has no roster guest.
// Concurrent calls for the same code are serialized by the transaction and
// the unique index, so the loser of a create race observes AlreadyMarked
// rather than a duplicate-key failure.
func (s *Service) MarkIn(ctx context.Context, code string, method Method) (MarkResult, error) {
	guest, found, err := s.roster.Get(ctx, code)
	if err != nil {
		return MarkResult{}, err
	}
	if !found {
		s.logger.Warn("check-in for unknown code", zap.String("code", code))
		return MarkResult{}, fmt.Errorf("%w: %s", ErrCodeNotFound, code)
	}

	var result MarkResult
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upserted, alreadyMarked, err := upsertMark(tx, guest, method, s.clock().UTC())
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent caller created the mark between our read and
			// insert; re-running the upsert now takes the update path.
			upserted, alreadyMarked, err = upsertMark(tx, guest, method, s.clock().UTC())
		}
		if err != nil {
			return err
		}
		result = MarkResult{
			Code:          upserted.Code,
			Name:          upserted.Name,
			Method:        upserted.Method,
			Timestamp:     upserted.Timestamp,
			AlreadyMarked: alreadyMarked,
		}
		return nil
	})
	if txErr != nil {
		s.logger.Error("check-in failed", zap.String("code", guest.Code), zap.Error(txErr))
		return MarkResult{}, txErr
	}

	s.logger.Info("check-in recorded",
		zap.String("code", result.Code),
		zap.String("method", string(result.Method)),
		zap.Bool("already_marked", result.AlreadyMarked))
	return result, nil
}

func upsertMark(tx *gorm.DB, guest roster.Guest, method Method, now time.Time) (Mark, bool, error) {
	var existing Mark
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", guest.Code).
		Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		created := Mark{Code: guest.Code, Name: guest.Name, Method: method, Timestamp: now}
		if err := tx.Create(&created).Error; err != nil {
			return Mark{}, false, err
		}
		return created, false, nil
	}
	if err != nil {
		return Mark{}, false, fmt.Errorf("ledger: mark lookup failed: %w", err)
	}

	existing.Name = guest.Name
	existing.Method = method
	existing.Timestamp = now
	if err := tx.Save(&existing).Error; err != nil {
		return Mark{}, false, fmt.Errorf("ledger: mark update failed: %w", err)
	}
	return existing, true, nil
}

// IsMarked reports whether the code has a recorded check-in.
func (s *Service) IsMarked(ctx context.Context, code string) (bool, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Mark{}).
		Where("code = ?", code).
		Count(&total).Error; err != nil {
		return false, fmt.Errorf("ledger: mark lookup failed: %w", err)
	}
	return total > 0, nil
}

// All returns every mark keyed by code.
func (s *Service) All(ctx context.Context) (map[string]Mark, error) {
	var marks []Mark
	if err := s.db.WithContext(ctx).Find(&marks).Error; err != nil {
		return nil, fmt.Errorf("ledger: mark list failed: %w", err)
	}
	byCode := make(map[string]Mark, len(marks))
	for _, mark := range marks {
		byCode[mark.Code] = mark
	}
	return byCode, nil
}

// Count returns the number of recorded check-ins.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Mark{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("ledger: mark count failed: %w", err)
	}
	return total, nil
}

// Clear removes every mark and returns the number removed.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("1 = 1").Delete(&Mark{})
	if result.Error != nil {
		return 0, fmt.Errorf("ledger: clear failed: %w", result.Error)
	}
	s.logger.Warn("ledger cleared", zap.Int64("deleted", result.RowsAffected))
	return result.RowsAffected, nil
}
