package trip

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tripjournal/service-trips/internal/common/domain"
	"github.com/tripjournal/service-trips/internal/domain/geo"
)

// maxPhotoIdentifiers bounds the media references kept per waypoint.
const maxPhotoIdentifiers = 50

// LocationData is a waypoint: an accepted sample persisted into a trip.
// Only Comment and PhotoIdentifiers change after creation.
type LocationData struct {
	ID               uuid.UUID
	TripID           uuid.UUID
	Address          string
	RoadName         string
	Coordinate       geo.Coordinate
	Altitude         float64
	Timestamp        time.Time
	Comment          string
	PhotoIdentifiers []string
	CreatedAt        time.Time
}

// NewLocationData creates a waypoint from an accepted draft with a generated UUID.
func NewLocationData(draft WaypointDraft) (LocationData, error) {
	if !draft.Coordinate.Valid() {
		return LocationData{}, domain.NewValidationError("coordinate", "must be a finite latitude/longitude in range")
	}
	if math.IsNaN(draft.Altitude) || math.IsInf(draft.Altitude, 0) {
		return LocationData{}, domain.NewValidationError("altitude", "must be finite")
	}
	return LocationData{
		ID:               uuid.New(),
		TripID:           draft.TripID,
		Address:          draft.Address,
		RoadName:         draft.RoadName,
		Coordinate:       draft.Coordinate,
		Altitude:         draft.Altitude,
		Timestamp:        draft.Timestamp.UTC(),
		PhotoIdentifiers: []string{},
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// SetComment replaces the free-text comment.
func (l *LocationData) SetComment(comment string) {
	l.Comment = strings.TrimSpace(comment)
}

// SetPhotoIdentifiers replaces the media references, dropping blanks and duplicates.
func (l *LocationData) SetPhotoIdentifiers(ids []string) error {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) > maxPhotoIdentifiers {
		return domain.NewValidationError("photoIdentifiers", "too many photos for one waypoint")
	}
	l.PhotoIdentifiers = out
	return nil
}
