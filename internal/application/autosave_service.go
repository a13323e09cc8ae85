package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripjournal/service-trips/internal/common/domain"
	"github.com/tripjournal/service-trips/internal/common/events"
	"github.com/tripjournal/service-trips/internal/common/kafka"
	tripDomain "github.com/tripjournal/service-trips/internal/domain/trip"
	"github.com/tripjournal/service-trips/internal/ws"
)

// ReasonNoActiveTrip is reported when a sample arrives for an owner without an active trip.
// The engine never sees such samples.
const ReasonNoActiveTrip = "no_active_trip"

// AutoSaveService feeds live samples through the auto-save engine and commits the
// accepted ones as waypoints.
type AutoSaveService struct {
	repo      tripDomain.Repository
	locks     *TripLocks
	hub       Broadcaster
	publisher EventPublisher
	topic     string
	logger    *zap.Logger

	statsMu   sync.Mutex
	evaluated uint64
	accepted  uint64
	byReason  map[string]uint64
}

// NewAutoSaveService creates a new AutoSaveService. Waypoint events go to topic.
func NewAutoSaveService(
	repo tripDomain.Repository,
	locks *TripLocks,
	hub Broadcaster,
	publisher EventPublisher,
	topic string,
	logger *zap.Logger,
) *AutoSaveService {
	return &AutoSaveService{
		repo:      repo,
		locks:     locks,
		hub:       hub,
		publisher: publisher,
		topic:     topic,
		logger:    logger,
		byReason:  make(map[string]uint64),
	}
}

// HandleSample evaluates one sample against the owner's active trip. Rejections are
// results, not errors; only store failures are returned.
func (s *AutoSaveService) HandleSample(ctx context.Context, ownerID uuid.UUID, sample tripDomain.Sample) (*SampleResult, error) {
	active, err := s.repo.FindActiveByOwnerID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.record(ReasonNoActiveTrip, false)
			s.logger.Debug("sample ignored, no active trip", zap.String("owner_id", ownerID.String()))
			return &SampleResult{Reason: ReasonNoActiveTrip}, nil
		}
		return nil, fmt.Errorf("failed to find active trip: %w", err)
	}

	result, saved, err := s.evaluate(ctx, active.ID(), sample)
	if err != nil || saved == nil {
		return result, err
	}

	// Publishing may retry against a slow broker, so it runs after the trip lock is released.
	s.publish(ctx, saved.trip, saved.waypoint, result.Reason)
	return result, nil
}

// savedWaypoint is what evaluate hands back for publication once a waypoint is committed.
type savedWaypoint struct {
	trip     *tripDomain.Trip
	waypoint tripDomain.LocationData
}

// evaluate runs the engine and commits an accepted waypoint while holding the trip lock.
func (s *AutoSaveService) evaluate(ctx context.Context, tripID uuid.UUID, sample tripDomain.Sample) (*SampleResult, *savedWaypoint, error) {
	unlock := s.locks.Lock(tripID)
	defer unlock()

	// Reload under the lock so a concurrent end or policy edit is seen.
	t, err := s.repo.FindByID(ctx, tripID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load trip: %w", err)
	}
	last, err := s.repo.LastWaypoint(ctx, tripID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load last waypoint: %w", err)
	}

	decision, err := tripDomain.Evaluate(sample, t, last)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to evaluate sample: %w", err)
	}

	result := &SampleResult{
		TripID:             &tripID,
		Accepted:           decision.Accepted,
		Reason:             string(decision.Reason),
		DistanceMeters:     decision.DistanceMeters,
		ElapsedSeconds:     decision.Elapsed.Seconds(),
		TimeTriggerIgnored: decision.TimeTriggerIgnored,
	}

	if !decision.Accepted {
		s.record(result.Reason, false)
		s.logRejection(tripID, decision)
		return result, nil, nil
	}

	wp, err := tripDomain.NewLocationData(*decision.Waypoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build waypoint: %w", err)
	}
	stored, err := s.repo.CommitWaypoint(ctx, tripID, wp)
	if err != nil {
		var stateErr *domain.InvalidStateError
		if errors.As(err, &stateErr) {
			// Ended between the reload and the commit.
			result.Accepted = false
			result.Reason = string(tripDomain.ReasonTripNotActive)
			s.record(result.Reason, false)
			return result, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to commit waypoint: %w", err)
	}
	if err := t.AppendLocation(stored.ID); err != nil {
		s.logger.Warn("trip ended while appending waypoint", zap.String("trip_id", tripID.String()))
	}

	s.record(result.Reason, true)
	dto := toWaypointDTO(stored)
	result.Waypoint = &dto

	s.logger.Info("waypoint auto-saved",
		zap.String("trip_id", tripID.String()),
		zap.String("waypoint_id", stored.ID.String()),
		zap.String("reason", result.Reason),
		zap.Float64("distance_m", decision.DistanceMeters),
		zap.Duration("elapsed", decision.Elapsed),
		zap.Int("waypoints", len(t.LocationIDs())),
	)

	s.broadcast(t, stored, result.Reason)
	return result, &savedWaypoint{trip: t, waypoint: stored}, nil
}

// Stats returns the decision counters.
func (s *AutoSaveService) Stats() AutoSaveStatsDTO {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	byReason := make(map[string]uint64, len(s.byReason))
	for k, v := range s.byReason {
		byReason[k] = v
	}
	return AutoSaveStatsDTO{
		Evaluated: s.evaluated,
		Accepted:  s.accepted,
		Rejected:  s.evaluated - s.accepted,
		ByReason:  byReason,
	}
}

func (s *AutoSaveService) record(reason string, accepted bool) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	s.evaluated++
	if accepted {
		s.accepted++
	}
	s.byReason[reason]++
}

func (s *AutoSaveService) logRejection(tripID uuid.UUID, d tripDomain.Decision) {
	fields := []zap.Field{
		zap.String("trip_id", tripID.String()),
		zap.String("reason", string(d.Reason)),
		zap.Float64("distance_m", d.DistanceMeters),
		zap.Duration("elapsed", d.Elapsed),
	}
	if d.TimeTriggerIgnored {
		fields = append(fields, zap.Bool("time_trigger_ignored", true))
	}

	switch d.Reason {
	case tripDomain.ReasonStaleSample, tripDomain.ReasonMalformedSample:
		s.logger.Warn("sample rejected", fields...)
	default:
		s.logger.Debug("sample rejected", fields...)
	}
}

// broadcast pushes an accepted waypoint to live viewers. The hub never blocks, so this runs
// under the trip lock and viewers see updates in commit order.
func (s *AutoSaveService) broadcast(t *tripDomain.Trip, wp tripDomain.LocationData, reason string) {
	s.hub.Broadcast(&ws.TripUpdate{
		Type:   ws.UpdateWaypointSaved,
		TripID: t.ID(),
		Waypoint: &ws.WaypointUpdate{
			WaypointID: wp.ID,
			Reason:     reason,
			Latitude:   wp.Coordinate.Latitude,
			Longitude:  wp.Coordinate.Longitude,
			Altitude:   wp.Altitude,
			RoadName:   wp.RoadName,
			Address:    wp.Address,
			Timestamp:  wp.Timestamp,
		},
	})
}

// publish sends waypoint.saved to the trip topic. Failures are logged; the waypoint is
// already committed.
func (s *AutoSaveService) publish(ctx context.Context, t *tripDomain.Trip, wp tripDomain.LocationData, reason string) {
	evt := events.WaypointSavedEvent{
		TripID:     t.ID(),
		OwnerID:    t.OwnerID(),
		WaypointID: wp.ID,
		Reason:     reason,
		Latitude:   wp.Coordinate.Latitude,
		Longitude:  wp.Coordinate.Longitude,
		Altitude:   wp.Altitude,
		RoadName:   wp.RoadName,
		Address:    wp.Address,
		RecordedAt: wp.Timestamp,
		OccurredAt: time.Now().UTC(),
	}
	cloudEvt, err := kafka.NewCloudEvent(serviceName, events.TripWaypointSaved, evt)
	if err != nil {
		s.logger.Error("failed to create cloud event", zap.Error(err))
		return
	}
	if err := s.publisher.PublishEvent(ctx, s.topic, cloudEvt.WithSubject(t.ID().String())); err != nil {
		s.logger.Error("failed to publish waypoint saved event", zap.Error(err))
	}
}
