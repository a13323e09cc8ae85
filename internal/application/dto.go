package application

import (
	"time"

	"github.com/google/uuid"

	"github.com/tripjournal/service-trips/internal/domain/autosave"
	"github.com/tripjournal/service-trips/internal/domain/geo"
	tripDomain "github.com/tripjournal/service-trips/internal/domain/trip"
)

// StartTripRequest is the body of POST /trips. AutoSaveConfig wins over TripType; with
// neither the walking preset is used.
type StartTripRequest struct {
	Name           string                  `json:"name" binding:"required"`
	Description    string                  `json:"description"`
	Color          string                  `json:"color"`
	TripType       string                  `json:"tripType"`
	AutoSaveConfig *autosave.Configuration `json:"autoSaveConfig"`
	StartDate      *time.Time              `json:"startDate"`
}

// UpdateTripRequest is the body of PATCH /trips/:tripId. Nil fields are left unchanged.
type UpdateTripRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

// UpdateWaypointRequest is the body of PATCH /waypoints/:waypointId.
type UpdateWaypointRequest struct {
	Comment          *string   `json:"comment"`
	PhotoIdentifiers *[]string `json:"photoIdentifiers"`
}

// SampleRequest is one live location sample posted by a client. Missing coordinates
// or timestamp make the sample malformed rather than a bad request.
type SampleRequest struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Altitude  *float64   `json:"altitude"`
	RoadName  string     `json:"roadName"`
	Address   string     `json:"address"`
	Timestamp *time.Time `json:"timestamp"`
}

// ToSample converts the request into an engine sample.
func (r SampleRequest) ToSample() tripDomain.Sample {
	return NewSample(r.Latitude, r.Longitude, r.Altitude, r.RoadName, r.Address, r.Timestamp)
}

// NewSample builds an engine sample from optional wire fields. A missing altitude is 0.
func NewSample(lat, lon, alt *float64, roadName, address string, ts *time.Time) tripDomain.Sample {
	s := tripDomain.Sample{
		Coordinate: geo.Missing(),
		RoadName:   roadName,
		Address:    address,
	}
	if lat != nil && lon != nil {
		s.Coordinate = geo.Coordinate{Latitude: *lat, Longitude: *lon}
	}
	if alt != nil {
		s.Altitude = *alt
	}
	if ts != nil {
		s.Timestamp = *ts
	}
	return s
}

// TripDTO represents a trip in API responses.
type TripDTO struct {
	ID                uuid.UUID              `json:"id"`
	OwnerID           uuid.UUID              `json:"ownerId"`
	Name              string                 `json:"name"`
	Description       string                 `json:"description"`
	StartDate         time.Time              `json:"startDate"`
	EndDate           *time.Time             `json:"endDate,omitempty"`
	IsActive          bool                   `json:"isActive"`
	Status            string                 `json:"status"`
	LocationIDs       []uuid.UUID            `json:"locationIds"`
	Color             string                 `json:"color"`
	AutoSaveConfig    autosave.Configuration `json:"autoSaveConfig"`
	TriggerMode       string                 `json:"triggerMode"`
	TimeIntervalValid bool                   `json:"timeIntervalValid"`
	Version           int64                  `json:"version"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

// TripDetailDTO is a trip with its waypoints.
type TripDetailDTO struct {
	TripDTO
	DistanceMeters float64       `json:"distanceMeters"`
	Waypoints      []WaypointDTO `json:"waypoints"`
}

// WaypointDTO represents a waypoint in API responses.
type WaypointDTO struct {
	ID               uuid.UUID `json:"id"`
	TripID           uuid.UUID `json:"tripId"`
	Address          string    `json:"address"`
	RoadName         string    `json:"roadName"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Altitude         float64   `json:"altitude"`
	Timestamp        time.Time `json:"timestamp"`
	Comment          string    `json:"comment"`
	PhotoIdentifiers []string  `json:"photoIdentifiers"`
}

// TripBackupDTO is the JSON backup of a trip. The trip part keeps the field names of the
// journal's on-device format so backups can be re-imported.
type TripBackupDTO struct {
	FormatVersion int            `json:"formatVersion"`
	ExportedAt    time.Time      `json:"exportedAt"`
	Trip          TripBackupTrip `json:"trip"`
	Waypoints     []WaypointDTO  `json:"waypoints"`
}

// TripBackupTrip is the trip record inside a backup.
type TripBackupTrip struct {
	ID             uuid.UUID              `json:"id"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	StartDate      time.Time              `json:"startDate"`
	EndDate        *time.Time             `json:"endDate"`
	IsActive       bool                   `json:"isActive"`
	LocationIDs    []uuid.UUID            `json:"locationIds"`
	Color          string                 `json:"color"`
	AutoSaveConfig autosave.Configuration `json:"autoSaveConfig"`
}

// SampleResult reports what happened to one submitted sample.
type SampleResult struct {
	TripID             *uuid.UUID   `json:"tripId,omitempty"`
	Accepted           bool         `json:"accepted"`
	Reason             string       `json:"reason"`
	DistanceMeters     float64      `json:"distanceMeters"`
	ElapsedSeconds     float64      `json:"elapsedSeconds"`
	TimeTriggerIgnored bool         `json:"timeTriggerIgnored"`
	Waypoint           *WaypointDTO `json:"waypoint,omitempty"`
}

// AutoSaveStatsDTO summarizes decisions since the process started.
type AutoSaveStatsDTO struct {
	Evaluated uint64            `json:"evaluated"`
	Accepted  uint64            `json:"accepted"`
	Rejected  uint64            `json:"rejected"`
	ByReason  map[string]uint64 `json:"byReason"`
}

func toTripDTO(t *tripDomain.Trip) TripDTO {
	cfg := t.AutoSaveConfig()
	return TripDTO{
		ID:                t.ID(),
		OwnerID:           t.OwnerID(),
		Name:              t.Name(),
		Description:       t.Description(),
		StartDate:         t.StartDate(),
		EndDate:           t.EndDate(),
		IsActive:          t.IsActive(),
		Status:            t.Status(),
		LocationIDs:       t.LocationIDs(),
		Color:             string(t.Color()),
		AutoSaveConfig:    cfg,
		TriggerMode:       string(cfg.TriggerMode()),
		TimeIntervalValid: cfg.IsValidTimeInterval(),
		Version:           t.Version(),
		CreatedAt:         t.CreatedAt(),
		UpdatedAt:         t.UpdatedAt(),
	}
}

func toWaypointDTO(wp tripDomain.LocationData) WaypointDTO {
	photos := wp.PhotoIdentifiers
	if photos == nil {
		photos = []string{}
	}
	return WaypointDTO{
		ID:               wp.ID,
		TripID:           wp.TripID,
		Address:          wp.Address,
		RoadName:         wp.RoadName,
		Latitude:         wp.Coordinate.Latitude,
		Longitude:        wp.Coordinate.Longitude,
		Altitude:         wp.Altitude,
		Timestamp:        wp.Timestamp,
		Comment:          wp.Comment,
		PhotoIdentifiers: photos,
	}
}

func toWaypointDTOs(wps []tripDomain.LocationData) []WaypointDTO {
	out := make([]WaypointDTO, len(wps))
	for i, wp := range wps {
		out[i] = toWaypointDTO(wp)
	}
	return out
}

func routeLength(wps []tripDomain.LocationData) float64 {
	path := make([]geo.Coordinate, len(wps))
	for i, wp := range wps {
		path[i] = wp.Coordinate
	}
	return geo.PathLength(path)
}
