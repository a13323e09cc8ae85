package trip

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for Trip aggregates and their waypoints.
type Repository interface {
	// FindByID retrieves a trip by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Trip, error)

	// FindActiveByOwnerID retrieves the owner's active trip.
	FindActiveByOwnerID(ctx context.Context, ownerID uuid.UUID) (*Trip, error)

	// ListByOwnerID retrieves every trip of an owner, newest first.
	ListByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*Trip, error)

	// Save persists a new trip. It fails with domain.ErrConflict when the owner already
	// has an active trip.
	Save(ctx context.Context, t *Trip) error

	// Update persists changes to an existing trip.
	Update(ctx context.Context, t *Trip) error

	// LastWaypoint retrieves the most recently accepted waypoint of a trip.
	LastWaypoint(ctx context.Context, tripID uuid.UUID) (*LocationData, error)

	// CommitWaypoint appends a waypoint to an active trip and returns the stored record.
	CommitWaypoint(ctx context.Context, tripID uuid.UUID, wp LocationData) (LocationData, error)

	// FindWaypoint retrieves a waypoint by its unique identifier.
	FindWaypoint(ctx context.Context, id uuid.UUID) (*LocationData, error)

	// UpdateWaypoint persists comment and photo identifier edits.
	UpdateWaypoint(ctx context.Context, wp LocationData) error

	// DeleteWaypoint removes a waypoint and its reference from the owning trip.
	DeleteWaypoint(ctx context.Context, id uuid.UUID) error

	// Waypoints retrieves all waypoints of a trip in acceptance order.
	Waypoints(ctx context.Context, tripID uuid.UUID) ([]LocationData, error)
}
