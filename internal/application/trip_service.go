package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripjournal/service-trips/internal/common/domain"
	"github.com/tripjournal/service-trips/internal/common/events"
	"github.com/tripjournal/service-trips/internal/common/kafka"
	"github.com/tripjournal/service-trips/internal/domain/autosave"
	tripDomain "github.com/tripjournal/service-trips/internal/domain/trip"
	"github.com/tripjournal/service-trips/internal/ws"
)

// backupFormatVersion is bumped whenever TripBackupDTO changes shape.
const backupFormatVersion = 1

// TripService implements the application use cases for managing trips and waypoints.
type TripService struct {
	repo      tripDomain.Repository
	locks     *TripLocks
	hub       Broadcaster
	publisher EventPublisher
	topic     string
	logger    *zap.Logger
}

// NewTripService creates a new TripService. Trip lifecycle events go to topic.
func NewTripService(
	repo tripDomain.Repository,
	locks *TripLocks,
	hub Broadcaster,
	publisher EventPublisher,
	topic string,
	logger *zap.Logger,
) *TripService {
	return &TripService{
		repo:      repo,
		locks:     locks,
		hub:       hub,
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// StartTrip creates a new active trip for ownerID.
func (s *TripService) StartTrip(ctx context.Context, ownerID uuid.UUID, req StartTripRequest) (*TripDTO, error) {
	cfg, err := startConfiguration(req)
	if err != nil {
		return nil, err
	}
	startDate := time.Now().UTC()
	if req.StartDate != nil {
		startDate = *req.StartDate
	}

	t, err := tripDomain.NewTrip(ownerID, req.Name, req.Description, tripDomain.Color(req.Color), cfg, startDate)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, t); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to save trip", zap.Error(err))
		return nil, fmt.Errorf("failed to save trip: %w", err)
	}

	s.publish(ctx, t.ID(), events.TripStarted, events.TripStartedEvent{
		TripID:     t.ID(),
		OwnerID:    t.OwnerID(),
		Name:       t.Name(),
		TripType:   string(t.AutoSaveConfig().TripType),
		StartedAt:  t.StartDate(),
		OccurredAt: time.Now().UTC(),
	})

	s.logger.Info("trip started",
		zap.String("trip_id", t.ID().String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("trip_type", string(t.AutoSaveConfig().TripType)),
	)
	dto := toTripDTO(t)
	return &dto, nil
}

func startConfiguration(req StartTripRequest) (autosave.Configuration, error) {
	if req.AutoSaveConfig != nil {
		return *req.AutoSaveConfig, nil
	}
	if req.TripType == "" {
		return autosave.Default(), nil
	}
	cfg, ok := autosave.Preset(autosave.TripType(req.TripType))
	if !ok {
		return autosave.Configuration{}, domain.NewValidationError("tripType", "must be walking, bicycle or car")
	}
	return cfg, nil
}

// EndTrip ends an active trip. The trip_ended event is published after the trip lock
// is released.
func (s *TripService) EndTrip(ctx context.Context, ownerID, tripID uuid.UUID) (*TripDTO, error) {
	t, waypoints, err := s.end(ctx, ownerID, tripID)
	if err != nil {
		return nil, err
	}
	distance := routeLength(waypoints)

	s.publish(ctx, tripID, events.TripEnded, events.TripEndedEvent{
		TripID:         tripID,
		OwnerID:        ownerID,
		EndedAt:        *t.EndDate(),
		WaypointCount:  len(waypoints),
		DistanceMeters: distance,
		OccurredAt:     time.Now().UTC(),
	})

	s.logger.Info("trip ended",
		zap.String("trip_id", tripID.String()),
		zap.Int("waypoints", len(waypoints)),
		zap.Float64("distance_m", distance),
	)
	dto := toTripDTO(t)
	return &dto, nil
}

func (s *TripService) end(ctx context.Context, ownerID, tripID uuid.UUID) (*tripDomain.Trip, []tripDomain.LocationData, error) {
	unlock := s.locks.Lock(tripID)
	defer unlock()

	t, err := s.ownedTrip(ctx, ownerID, tripID)
	if err != nil {
		return nil, nil, err
	}
	if err := t.End(time.Now().UTC()); err != nil {
		return nil, nil, err
	}
	if err := s.update(ctx, t); err != nil {
		return nil, nil, err
	}

	waypoints, err := s.repo.Waypoints(ctx, tripID)
	if err != nil {
		s.logger.Warn("failed to load waypoints for trip summary", zap.Error(err))
	}

	// Viewers hear about the end in lock order, after any waypoint saved before it.
	endedAt := *t.EndDate()
	s.hub.Broadcast(&ws.TripUpdate{Type: ws.UpdateTripEnded, TripID: tripID, EndedAt: &endedAt})
	return t, waypoints, nil
}

// ListTrips returns every trip of ownerID, newest first.
func (s *TripService) ListTrips(ctx context.Context, ownerID uuid.UUID) ([]TripDTO, error) {
	trips, err := s.repo.ListByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	out := make([]TripDTO, len(trips))
	for i, t := range trips {
		out[i] = toTripDTO(t)
	}
	return out, nil
}

// GetActiveTrip returns the owner's active trip.
func (s *TripService) GetActiveTrip(ctx context.Context, ownerID uuid.UUID) (*TripDTO, error) {
	t, err := s.repo.FindActiveByOwnerID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("active trip", ownerID.String())
		}
		return nil, fmt.Errorf("failed to find active trip: %w", err)
	}
	dto := toTripDTO(t)
	return &dto, nil
}

// GetTrip returns a trip with its waypoints.
func (s *TripService) GetTrip(ctx context.Context, ownerID, tripID uuid.UUID) (*TripDetailDTO, error) {
	t, err := s.ownedTrip(ctx, ownerID, tripID)
	if err != nil {
		return nil, err
	}
	waypoints, err := s.repo.Waypoints(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load waypoints: %w", err)
	}
	return &TripDetailDTO{
		TripDTO:        toTripDTO(t),
		DistanceMeters: routeLength(waypoints),
		Waypoints:      toWaypointDTOs(waypoints),
	}, nil
}

// UpdateTrip changes the name, description or color. Allowed on ended trips.
func (s *TripService) UpdateTrip(ctx context.Context, ownerID, tripID uuid.UUID, req UpdateTripRequest) (*TripDTO, error) {
	return s.mutate(ctx, ownerID, tripID, func(t *tripDomain.Trip) error {
		if req.Name != nil {
			if err := t.Rename(*req.Name); err != nil {
				return err
			}
		}
		if req.Description != nil {
			t.Describe(*req.Description)
		}
		if req.Color != nil {
			if err := t.Recolor(tripDomain.Color(*req.Color)); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateAutoSaveConfig replaces the trip's auto-save policy. The label is recomputed, so
// a configuration equal to a preset is stored under that preset's name.
func (s *TripService) UpdateAutoSaveConfig(ctx context.Context, ownerID, tripID uuid.UUID, cfg autosave.Configuration) (*TripDTO, error) {
	dto, err := s.mutate(ctx, ownerID, tripID, func(t *tripDomain.Trip) error {
		return t.UpdateAutoSaveConfig(cfg)
	})
	if err != nil {
		return nil, err
	}
	if !dto.TimeIntervalValid && dto.AutoSaveConfig.SaveOnTimeInterval {
		s.logger.Warn("time trigger interval out of range, engine will ignore it",
			zap.String("trip_id", tripID.String()),
			zap.Int("interval_s", dto.AutoSaveConfig.TotalIntervalSeconds()),
		)
	}
	return dto, nil
}

// ApplyPreset switches the trip to a named preset, keeping the master switch.
func (s *TripService) ApplyPreset(ctx context.Context, ownerID, tripID uuid.UUID, tripType string) (*TripDTO, error) {
	return s.mutate(ctx, ownerID, tripID, func(t *tripDomain.Trip) error {
		return t.ApplyPreset(autosave.TripType(tripType))
	})
}

// GetRouteGeoJSON returns the trip's route as a GeoJSON FeatureCollection.
func (s *TripService) GetRouteGeoJSON(ctx context.Context, ownerID, tripID uuid.UUID) ([]byte, error) {
	t, err := s.ownedTrip(ctx, ownerID, tripID)
	if err != nil {
		return nil, err
	}
	waypoints, err := s.repo.Waypoints(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load waypoints: %w", err)
	}
	return routeGeoJSON(t, waypoints)
}

// ExportBackup returns a full JSON backup of a trip.
func (s *TripService) ExportBackup(ctx context.Context, ownerID, tripID uuid.UUID) (*TripBackupDTO, error) {
	t, err := s.ownedTrip(ctx, ownerID, tripID)
	if err != nil {
		return nil, err
	}
	waypoints, err := s.repo.Waypoints(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load waypoints: %w", err)
	}

	return &TripBackupDTO{
		FormatVersion: backupFormatVersion,
		ExportedAt:    time.Now().UTC(),
		Trip: TripBackupTrip{
			ID:             t.ID(),
			Name:           t.Name(),
			Description:    t.Description(),
			StartDate:      t.StartDate(),
			EndDate:        t.EndDate(),
			IsActive:       t.IsActive(),
			LocationIDs:    t.LocationIDs(),
			Color:          string(t.Color()),
			AutoSaveConfig: t.AutoSaveConfig(),
		},
		Waypoints: toWaypointDTOs(waypoints),
	}, nil
}

// UpdateWaypoint edits the comment or photo identifiers of a waypoint.
func (s *TripService) UpdateWaypoint(ctx context.Context, ownerID, waypointID uuid.UUID, req UpdateWaypointRequest) (*WaypointDTO, error) {
	wp, err := s.ownedWaypoint(ctx, ownerID, waypointID)
	if err != nil {
		return nil, err
	}
	if req.Comment != nil {
		wp.SetComment(*req.Comment)
	}
	if req.PhotoIdentifiers != nil {
		if err := wp.SetPhotoIdentifiers(*req.PhotoIdentifiers); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateWaypoint(ctx, *wp); err != nil {
		return nil, fmt.Errorf("failed to update waypoint: %w", err)
	}
	dto := toWaypointDTO(*wp)
	return &dto, nil
}

// DeleteWaypoint removes a waypoint and its reference from the trip. If it was the last
// accepted waypoint, the next sample is compared against the one before it.
func (s *TripService) DeleteWaypoint(ctx context.Context, ownerID, waypointID uuid.UUID) error {
	wp, err := s.ownedWaypoint(ctx, ownerID, waypointID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(wp.TripID)
	defer unlock()

	t, err := s.repo.FindByID(ctx, wp.TripID)
	if err != nil {
		return fmt.Errorf("failed to load trip: %w", err)
	}
	if !t.RemoveLocation(waypointID) {
		return domain.NewNotFoundError("waypoint", waypointID.String())
	}
	if err := s.repo.DeleteWaypoint(ctx, waypointID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewNotFoundError("waypoint", waypointID.String())
		}
		return fmt.Errorf("failed to delete waypoint: %w", err)
	}

	s.logger.Info("waypoint deleted",
		zap.String("trip_id", wp.TripID.String()),
		zap.String("waypoint_id", waypointID.String()),
		zap.Int("waypoints", len(t.LocationIDs())),
	)
	return nil
}

// mutate applies change to an owned trip under its lock and persists it.
func (s *TripService) mutate(ctx context.Context, ownerID, tripID uuid.UUID, change func(*tripDomain.Trip) error) (*TripDTO, error) {
	unlock := s.locks.Lock(tripID)
	defer unlock()

	t, err := s.ownedTrip(ctx, ownerID, tripID)
	if err != nil {
		return nil, err
	}
	if err := change(t); err != nil {
		return nil, err
	}
	if err := s.update(ctx, t); err != nil {
		return nil, err
	}
	dto := toTripDTO(t)
	return &dto, nil
}

func (s *TripService) update(ctx context.Context, t *tripDomain.Trip) error {
	t.IncrementVersion()
	if err := s.repo.Update(ctx, t); err != nil {
		if errors.Is(err, domain.ErrOptimisticLock) {
			return err
		}
		return fmt.Errorf("failed to update trip: %w", err)
	}
	return nil
}

// ownedTrip loads a trip and hides trips of other owners behind a not found error.
func (s *TripService) ownedTrip(ctx context.Context, ownerID, tripID uuid.UUID) (*tripDomain.Trip, error) {
	t, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("trip", tripID.String())
		}
		return nil, fmt.Errorf("failed to find trip: %w", err)
	}
	if t.OwnerID() != ownerID {
		return nil, domain.NewNotFoundError("trip", tripID.String())
	}
	return t, nil
}

func (s *TripService) ownedWaypoint(ctx context.Context, ownerID, waypointID uuid.UUID) (*tripDomain.LocationData, error) {
	wp, err := s.repo.FindWaypoint(ctx, waypointID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("waypoint", waypointID.String())
		}
		return nil, fmt.Errorf("failed to find waypoint: %w", err)
	}
	if _, err := s.ownedTrip(ctx, ownerID, wp.TripID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("waypoint", waypointID.String())
		}
		return nil, err
	}
	return wp, nil
}

func (s *TripService) publish(ctx context.Context, tripID uuid.UUID, eventType string, data interface{}) {
	cloudEvt, err := kafka.NewCloudEvent(serviceName, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event", zap.Error(err))
		return
	}
	if err := s.publisher.PublishEvent(ctx, s.topic, cloudEvt.WithSubject(tripID.String())); err != nil {
		s.logger.Error("failed to publish trip event", zap.String("type", eventType), zap.Error(err))
	}
}
