// Package events defines the topics, CloudEvent types and payloads exchanged over Kafka.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Default topic names. Deployments can override them through configuration.
const (
	TopicLocationSamples = "location-samples"
	TopicTripEvents      = "trip-events"
)

// Event types.
const (
	DeviceLocationSampled = "device.location.sampled"

	TripStarted       = "trip.started"
	TripEnded         = "trip.ended"
	TripWaypointSaved = "trip.waypoint.saved"
)

// LocationSampledEvent is one live location sample reported by a device. Coordinates and
// altitude are optional on the wire: a device without a fix still reports.
type LocationSampledEvent struct {
	OwnerID   uuid.UUID `json:"ownerId"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	RoadName  string    `json:"roadName,omitempty"`
	Address   string    `json:"address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TripStartedEvent is published when a trip is started.
type TripStartedEvent struct {
	TripID     uuid.UUID `json:"tripId"`
	OwnerID    uuid.UUID `json:"ownerId"`
	Name       string    `json:"name"`
	TripType   string    `json:"tripType"`
	StartedAt  time.Time `json:"startedAt"`
	OccurredAt time.Time `json:"occurredAt"`
}

// TripEndedEvent is published when a trip is ended.
type TripEndedEvent struct {
	TripID         uuid.UUID `json:"tripId"`
	OwnerID        uuid.UUID `json:"ownerId"`
	EndedAt        time.Time `json:"endedAt"`
	WaypointCount  int       `json:"waypointCount"`
	DistanceMeters float64   `json:"distanceMeters"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// WaypointSavedEvent is published for every sample the auto-save engine accepts.
type WaypointSavedEvent struct {
	TripID     uuid.UUID `json:"tripId"`
	OwnerID    uuid.UUID `json:"ownerId"`
	WaypointID uuid.UUID `json:"waypointId"`
	Reason     string    `json:"reason"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   float64   `json:"altitude"`
	RoadName   string    `json:"roadName,omitempty"`
	Address    string    `json:"address,omitempty"`
	RecordedAt time.Time `json:"recordedAt"`
	OccurredAt time.Time `json:"occurredAt"`
}
