package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tripjournal/service-trips/internal/common/domain"
	shareDomain "github.com/tripjournal/service-trips/internal/domain/share"
)

// SharedTripModel is the GORM model for the shared_trips table.
type SharedTripModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TripID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ShareToken string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
	RevokedAt  *time.Time
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (SharedTripModel) TableName() string { return "shared_trips" }

// GormSharedTripRepository implements SharedTripRepository using GORM.
type GormSharedTripRepository struct {
	db *gorm.DB
}

// NewGormSharedTripRepository creates a new GormSharedTripRepository.
func NewGormSharedTripRepository(db *gorm.DB) *GormSharedTripRepository {
	return &GormSharedTripRepository{db: db}
}

var _ shareDomain.SharedTripRepository = (*GormSharedTripRepository)(nil)

// Save persists a new shared trip.
func (r *GormSharedTripRepository) Save(ctx context.Context, st *shareDomain.SharedTrip) error {
	model := toShareModel(st)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save share link: %w", err)
	}
	return nil
}

// Update persists the revocation state of an existing shared trip.
func (r *GormSharedTripRepository) Update(ctx context.Context, st *shareDomain.SharedTrip) error {
	result := r.db.WithContext(ctx).Model(&SharedTripModel{}).
		Where("id = ?", st.ID()).
		Update("revoked_at", st.RevokedAt())
	if result.Error != nil {
		return fmt.Errorf("failed to update share link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FindByToken returns a shared trip by its token.
func (r *GormSharedTripRepository) FindByToken(ctx context.Context, token string) (*shareDomain.SharedTrip, error) {
	var model SharedTripModel
	if err := r.db.WithContext(ctx).Where("share_token = ?", token).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find share link: %w", err)
	}
	return toShareDomain(&model), nil
}

// FindByTripID returns the newest shared trip for a trip.
func (r *GormSharedTripRepository) FindByTripID(ctx context.Context, tripID uuid.UUID) (*shareDomain.SharedTrip, error) {
	var model SharedTripModel
	if err := r.db.WithContext(ctx).Where("trip_id = ?", tripID).Order("created_at DESC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find share link: %w", err)
	}
	return toShareDomain(&model), nil
}

// DeleteExpired removes every link that expired or was revoked before now and reports how
// many went.
func (r *GormSharedTripRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at < ?", now, now).
		Delete(&SharedTripModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge share links: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func toShareModel(s *shareDomain.SharedTrip) SharedTripModel {
	return SharedTripModel{
		ID:         s.ID(),
		TripID:     s.TripID(),
		ShareToken: s.ShareToken(),
		ExpiresAt:  s.ExpiresAt(),
		RevokedAt:  s.RevokedAt(),
		CreatedAt:  s.CreatedAt(),
	}
}

func toShareDomain(m *SharedTripModel) *shareDomain.SharedTrip {
	return shareDomain.Reconstruct(
		m.ID,
		m.TripID,
		m.ShareToken,
		m.ExpiresAt,
		m.RevokedAt,
		m.CreatedAt,
	)
}
