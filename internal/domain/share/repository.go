package share

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SharedTripRepository defines persistence operations for shared trips.
type SharedTripRepository interface {
	Save(ctx context.Context, st *SharedTrip) error
	Update(ctx context.Context, st *SharedTrip) error
	FindByToken(ctx context.Context, token string) (*SharedTrip, error)
	// FindByTripID returns the newest link of a trip.
	FindByTripID(ctx context.Context, tripID uuid.UUID) (*SharedTrip, error)
	// DeleteExpired removes links that expired or were revoked before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
