package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tripjournal/service-trips/internal/common/domain"
	"github.com/tripjournal/service-trips/internal/domain/autosave"
	"github.com/tripjournal/service-trips/internal/domain/geo"
	tripDomain "github.com/tripjournal/service-trips/internal/domain/trip"
)

// TripModel is the GORM model for the trips table.
type TripModel struct {
	ID             uuid.UUID              `gorm:"type:uuid;primaryKey"`
	OwnerID        uuid.UUID              `gorm:"type:uuid;not null;index;uniqueIndex:idx_trips_one_active_per_owner,where:is_active = true"`
	Name           string                 `gorm:"type:varchar(120);not null"`
	Description    string                 `gorm:"type:text;not null;default:''"`
	StartDate      time.Time              `gorm:"not null"`
	EndDate        *time.Time
	IsActive       bool                   `gorm:"not null;index"`
	Color          string                 `gorm:"type:varchar(16);not null"`
	AutoSaveConfig autosave.Configuration `gorm:"type:jsonb;serializer:json;not null"`
	Version        int64                  `gorm:"not null;default:1"`
	CreatedAt      time.Time              `gorm:"not null"`
	UpdatedAt      time.Time              `gorm:"not null"`
}

// TableName overrides the default table name.
func (TripModel) TableName() string {
	return "trips"
}

// WaypointModel is the GORM model for the waypoints table. Seq orders waypoints within a
// trip and is the source of the trip's location id list.
type WaypointModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	TripID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_waypoints_trip_seq,priority:1"`
	Seq              int64     `gorm:"not null;uniqueIndex:idx_waypoints_trip_seq,priority:2"`
	Address          string    `gorm:"type:text;not null;default:''"`
	RoadName         string    `gorm:"type:varchar(255);not null;default:''"`
	Latitude         float64   `gorm:"type:double precision;not null"`
	Longitude        float64   `gorm:"type:double precision;not null"`
	Altitude         float64   `gorm:"type:double precision;not null;default:0"`
	RecordedAt       time.Time `gorm:"not null"`
	Comment          string    `gorm:"type:text;not null;default:''"`
	PhotoIdentifiers []string  `gorm:"type:jsonb;serializer:json;not null"`
	CreatedAt        time.Time `gorm:"not null"`
}

// TableName overrides the default table name.
func (WaypointModel) TableName() string {
	return "waypoints"
}

// AutoMigrate creates or updates every table this package owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&TripModel{}, &WaypointModel{}, &SharedTripModel{})
}

// GORMTripRepository implements trip.Repository using GORM.
type GORMTripRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGORMTripRepository creates a new GORM-based repository.
func NewGORMTripRepository(db *gorm.DB, logger *zap.Logger) *GORMTripRepository {
	return &GORMTripRepository{
		db:     db,
		logger: logger,
	}
}

var _ tripDomain.Repository = (*GORMTripRepository)(nil)

// FindByID retrieves a trip by its unique identifier.
func (r *GORMTripRepository) FindByID(ctx context.Context, id uuid.UUID) (*tripDomain.Trip, error) {
	var model TripModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find trip by id: %w", err)
	}
	return r.withLocationIDs(ctx, &model)
}

// FindActiveByOwnerID retrieves the owner's active trip.
func (r *GORMTripRepository) FindActiveByOwnerID(ctx context.Context, ownerID uuid.UUID) (*tripDomain.Trip, error) {
	var model TripModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active trip for owner: %w", err)
	}
	return r.withLocationIDs(ctx, &model)
}

// ListByOwnerID retrieves every trip of an owner, newest first.
func (r *GORMTripRepository) ListByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*tripDomain.Trip, error) {
	var models []TripModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("start_date DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	if len(models) == 0 {
		return []*tripDomain.Trip{}, nil
	}

	tripIDs := make([]uuid.UUID, len(models))
	for i, m := range models {
		tripIDs[i] = m.ID
	}

	var refs []waypointRef
	if err := r.db.WithContext(ctx).
		Model(&WaypointModel{}).
		Select("id", "trip_id").
		Where("trip_id IN ?", tripIDs).
		Order("seq ASC").
		Scan(&refs).Error; err != nil {
		return nil, fmt.Errorf("failed to load waypoint ids: %w", err)
	}

	byTrip := make(map[uuid.UUID][]uuid.UUID, len(models))
	for _, ref := range refs {
		byTrip[ref.TripID] = append(byTrip[ref.TripID], ref.ID)
	}

	trips := make([]*tripDomain.Trip, len(models))
	for i := range models {
		trips[i] = toDomain(&models[i], byTrip[models[i].ID])
	}
	return trips, nil
}

// Save persists a new trip.
func (r *GORMTripRepository) Save(ctx context.Context, t *tripDomain.Trip) error {
	model := toModel(t)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if model.IsActive {
			var active int64
			if err := tx.Model(&TripModel{}).
				Where("owner_id = ? AND is_active = ?", model.OwnerID, true).
				Count(&active).Error; err != nil {
				return fmt.Errorf("failed to check active trips: %w", err)
			}
			if active > 0 {
				return fmt.Errorf("owner already has an active trip: %w", domain.ErrConflict)
			}
		}
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to save trip: %w", err)
		}
		return nil
	})
}

// Update persists changes to an existing trip. The caller bumps the version first; the
// update only applies when the stored version is the previous one.
func (r *GORMTripRepository) Update(ctx context.Context, t *tripDomain.Trip) error {
	model := toModel(t)
	result := r.db.WithContext(ctx).
		Model(&TripModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version-1).
		Select("name", "description", "end_date", "is_active", "color", "auto_save_config", "version", "updated_at").
		Updates(model)

	if result.Error != nil {
		return fmt.Errorf("failed to update trip: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrOptimisticLock
	}
	return nil
}

// LastWaypoint retrieves the most recently accepted waypoint, or nil when the trip has none.
func (r *GORMTripRepository) LastWaypoint(ctx context.Context, tripID uuid.UUID) (*tripDomain.LocationData, error) {
	var model WaypointModel
	err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("seq DESC").
		Limit(1).
		Find(&model).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find last waypoint: %w", err)
	}
	if model.ID == uuid.Nil {
		return nil, nil
	}
	wp := toWaypointDomain(&model)
	return &wp, nil
}

// CommitWaypoint appends a waypoint to an active trip in a single transaction.
func (r *GORMTripRepository) CommitWaypoint(ctx context.Context, tripID uuid.UUID, wp tripDomain.LocationData) (tripDomain.LocationData, error) {
	wp.TripID = tripID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trip TripModel
		if err := tx.Select("id", "is_active").Where("id = ?", tripID).First(&trip).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("trip", tripID.String())
			}
			return fmt.Errorf("failed to load trip: %w", err)
		}
		if !trip.IsActive {
			return domain.NewInvalidStateError(tripDomain.StatusEnded, "location_appended")
		}

		var maxSeq int64
		if err := tx.Model(&WaypointModel{}).
			Select("COALESCE(MAX(seq), 0)").
			Where("trip_id = ?", tripID).
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("failed to read waypoint sequence: %w", err)
		}

		model := toWaypointModel(wp, maxSeq+1)
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to add waypoint: %w", err)
		}
		return tx.Model(&TripModel{}).Where("id = ?", tripID).Update("updated_at", time.Now().UTC()).Error
	})
	if err != nil {
		return tripDomain.LocationData{}, err
	}

	r.logger.Debug("waypoint committed",
		zap.String("trip_id", tripID.String()),
		zap.String("waypoint_id", wp.ID.String()),
	)
	return wp, nil
}

// FindWaypoint retrieves a waypoint by its unique identifier.
func (r *GORMTripRepository) FindWaypoint(ctx context.Context, id uuid.UUID) (*tripDomain.LocationData, error) {
	var model WaypointModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find waypoint: %w", err)
	}
	wp := toWaypointDomain(&model)
	return &wp, nil
}

// UpdateWaypoint persists comment and photo identifier edits. Other fields are immutable.
func (r *GORMTripRepository) UpdateWaypoint(ctx context.Context, wp tripDomain.LocationData) error {
	photos := wp.PhotoIdentifiers
	if photos == nil {
		photos = []string{}
	}
	result := r.db.WithContext(ctx).
		Model(&WaypointModel{}).
		Where("id = ?", wp.ID).
		Select("comment", "photo_identifiers").
		Updates(&WaypointModel{Comment: wp.Comment, PhotoIdentifiers: photos})
	if result.Error != nil {
		return fmt.Errorf("failed to update waypoint: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteWaypoint removes a waypoint. The trip's location ids are derived from the
// waypoints table, so the reference disappears with the row.
func (r *GORMTripRepository) DeleteWaypoint(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model WaypointModel
		if err := tx.Select("id", "trip_id").Where("id = ?", id).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to find waypoint: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&WaypointModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete waypoint: %w", err)
		}
		return tx.Model(&TripModel{}).Where("id = ?", model.TripID).Update("updated_at", time.Now().UTC()).Error
	})
}

// Waypoints retrieves all waypoints of a trip in acceptance order.
func (r *GORMTripRepository) Waypoints(ctx context.Context, tripID uuid.UUID) ([]tripDomain.LocationData, error) {
	var models []WaypointModel
	if err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to get waypoints: %w", err)
	}

	waypoints := make([]tripDomain.LocationData, len(models))
	for i := range models {
		waypoints[i] = toWaypointDomain(&models[i])
	}
	return waypoints, nil
}

type waypointRef struct {
	ID     uuid.UUID
	TripID uuid.UUID
}

func (r *GORMTripRepository) withLocationIDs(ctx context.Context, model *TripModel) (*tripDomain.Trip, error) {
	var refs []waypointRef
	if err := r.db.WithContext(ctx).
		Model(&WaypointModel{}).
		Select("id", "trip_id").
		Where("trip_id = ?", model.ID).
		Order("seq ASC").
		Scan(&refs).Error; err != nil {
		return nil, fmt.Errorf("failed to load waypoint ids: %w", err)
	}

	ids := make([]uuid.UUID, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	return toDomain(model, ids), nil
}

// toDomain converts a GORM model to a domain Trip.
func toDomain(model *TripModel, locationIDs []uuid.UUID) *tripDomain.Trip {
	return tripDomain.Reconstruct(
		model.ID,
		model.OwnerID,
		model.Name,
		model.Description,
		model.StartDate,
		model.EndDate,
		model.IsActive,
		locationIDs,
		tripDomain.Color(model.Color),
		model.AutoSaveConfig,
		model.Version,
		model.CreatedAt,
		model.UpdatedAt,
	)
}

// toModel converts a domain Trip to a GORM model.
func toModel(t *tripDomain.Trip) *TripModel {
	return &TripModel{
		ID:             t.ID(),
		OwnerID:        t.OwnerID(),
		Name:           t.Name(),
		Description:    t.Description(),
		StartDate:      t.StartDate(),
		EndDate:        t.EndDate(),
		IsActive:       t.IsActive(),
		Color:          string(t.Color()),
		AutoSaveConfig: t.AutoSaveConfig(),
		Version:        t.Version(),
		CreatedAt:      t.CreatedAt(),
		UpdatedAt:      t.UpdatedAt(),
	}
}

func toWaypointModel(wp tripDomain.LocationData, seq int64) *WaypointModel {
	photos := wp.PhotoIdentifiers
	if photos == nil {
		photos = []string{}
	}
	createdAt := wp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &WaypointModel{
		ID:               wp.ID,
		TripID:           wp.TripID,
		Seq:              seq,
		Address:          wp.Address,
		RoadName:         wp.RoadName,
		Latitude:         wp.Coordinate.Latitude,
		Longitude:        wp.Coordinate.Longitude,
		Altitude:         wp.Altitude,
		RecordedAt:       wp.Timestamp,
		Comment:          wp.Comment,
		PhotoIdentifiers: photos,
		CreatedAt:        createdAt,
	}
}

func toWaypointDomain(m *WaypointModel) tripDomain.LocationData {
	photos := m.PhotoIdentifiers
	if photos == nil {
		photos = []string{}
	}
	return tripDomain.LocationData{
		ID:               m.ID,
		TripID:           m.TripID,
		Address:          m.Address,
		RoadName:         m.RoadName,
		Coordinate:       geo.Coordinate{Latitude: m.Latitude, Longitude: m.Longitude},
		Altitude:         m.Altitude,
		Timestamp:        m.RecordedAt,
		Comment:          m.Comment,
		PhotoIdentifiers: photos,
		CreatedAt:        m.CreatedAt,
	}
}
