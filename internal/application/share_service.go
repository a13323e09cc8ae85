package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripjournal/service-trips/internal/common/domain"
	shareDomain "github.com/tripjournal/service-trips/internal/domain/share"
	tripDomain "github.com/tripjournal/service-trips/internal/domain/trip"
)

// SharedTripDTO is the API response for a shared trip link.
type SharedTripDTO struct {
	ID         uuid.UUID `json:"id"`
	TripID     uuid.UUID `json:"tripId"`
	ShareToken string    `json:"shareToken"`
	ShareURL   string    `json:"shareUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Reused     bool      `json:"reused"`
}

// SharedTripViewDTO is the public, read-only view of a shared trip.
type SharedTripViewDTO struct {
	TripID         uuid.UUID     `json:"tripId"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Color          string        `json:"color"`
	Status         string        `json:"status"`
	StartDate      time.Time     `json:"startDate"`
	EndDate        *time.Time    `json:"endDate,omitempty"`
	DistanceMeters float64       `json:"distanceMeters"`
	Waypoints      []WaypointDTO `json:"waypoints"`
	ExpiresAt      time.Time     `json:"expiresAt"`
}

// ShareService handles trip sharing use cases.
type ShareService struct {
	shareRepo shareDomain.SharedTripRepository
	tripRepo  tripDomain.Repository
	ttl       time.Duration
	logger    *zap.Logger
}

// NewShareService creates a new ShareService issuing links valid for ttl.
func NewShareService(shareRepo shareDomain.SharedTripRepository, tripRepo tripDomain.Repository, ttl time.Duration, logger *zap.Logger) *ShareService {
	return &ShareService{shareRepo: shareRepo, tripRepo: tripRepo, ttl: ttl, logger: logger}
}

// CreateShareLink returns a share link for one of the owner's trips. The newest link is
// handed out again while it has enough validity left; otherwise a fresh one is minted.
func (s *ShareService) CreateShareLink(ctx context.Context, ownerID, tripID uuid.UUID) (*SharedTripDTO, error) {
	if err := s.checkOwner(ctx, ownerID, tripID); err != nil {
		return nil, err
	}

	existing, err := s.shareRepo.FindByTripID(ctx, tripID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to find share link: %w", err)
	}
	if existing != nil && existing.Reusable(time.Now().UTC()) {
		dto := toSharedTripDTO(existing)
		dto.Reused = true
		return &dto, nil
	}

	st, err := shareDomain.NewSharedTrip(tripID, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create share link: %w", err)
	}

	if err := s.shareRepo.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save share link: %w", err)
	}

	s.logger.Info("share link created",
		zap.String("trip_id", tripID.String()),
		zap.Time("expires_at", st.ExpiresAt()),
	)

	dto := toSharedTripDTO(st)
	return &dto, nil
}

// RevokeShareLink closes the newest link of the owner's trip. Viewers holding its token get
// not found from then on.
func (s *ShareService) RevokeShareLink(ctx context.Context, ownerID, tripID uuid.UUID) error {
	if err := s.checkOwner(ctx, ownerID, tripID); err != nil {
		return err
	}

	st, err := s.shareRepo.FindByTripID(ctx, tripID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewNotFoundError("share link", tripID.String())
		}
		return fmt.Errorf("failed to find share link: %w", err)
	}
	if err := st.Revoke(time.Now().UTC()); err != nil {
		return err
	}
	if err := s.shareRepo.Update(ctx, st); err != nil {
		return fmt.Errorf("failed to revoke share link: %w", err)
	}

	s.logger.Info("share link revoked", zap.String("trip_id", tripID.String()))
	return nil
}

// GetSharedTrip returns the public view for a share token (no auth needed). Unknown and
// expired tokens are both reported as not found.
func (s *ShareService) GetSharedTrip(ctx context.Context, token string) (*SharedTripViewDTO, error) {
	st, err := s.shareRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("share link", token)
		}
		return nil, fmt.Errorf("failed to find share link: %w", err)
	}

	if !st.IsLive(time.Now().UTC()) {
		return nil, domain.NewNotFoundError("share link", token)
	}

	t, err := s.tripRepo.FindByID(ctx, st.TripID())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewNotFoundError("trip", st.TripID().String())
		}
		return nil, fmt.Errorf("failed to find trip: %w", err)
	}

	waypoints, err := s.tripRepo.Waypoints(ctx, t.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to get waypoints: %w", err)
	}

	return &SharedTripViewDTO{
		TripID:         t.ID(),
		Name:           t.Name(),
		Description:    t.Description(),
		Color:          string(t.Color()),
		Status:         t.Status(),
		StartDate:      t.StartDate(),
		EndDate:        t.EndDate(),
		DistanceMeters: routeLength(waypoints),
		Waypoints:      toWaypointDTOs(waypoints),
		ExpiresAt:      st.ExpiresAt(),
	}, nil
}

// PurgeExpired deletes every expired or revoked share link.
func (s *ShareService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.shareRepo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired share links purged", zap.Int64("count", n))
	}
	return n, nil
}

func (s *ShareService) checkOwner(ctx context.Context, ownerID, tripID uuid.UUID) error {
	t, err := s.tripRepo.FindByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewNotFoundError("trip", tripID.String())
		}
		return fmt.Errorf("failed to find trip: %w", err)
	}
	if t.OwnerID() != ownerID {
		return domain.NewNotFoundError("trip", tripID.String())
	}
	return nil
}

func toSharedTripDTO(st *shareDomain.SharedTrip) SharedTripDTO {
	return SharedTripDTO{
		ID:         st.ID(),
		TripID:     st.TripID(),
		ShareToken: st.ShareToken(),
		ShareURL:   fmt.Sprintf("/api/v1/trips/shared/%s", st.ShareToken()),
		ExpiresAt:  st.ExpiresAt(),
	}
}
