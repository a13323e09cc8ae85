package trip

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tripjournal/service-trips/internal/domain/geo"
)

// ErrNilTrip is returned by Evaluate when called without a trip. It signals a caller bug,
// never a policy outcome.
var ErrNilTrip = errors.New("autosave: evaluate called with nil trip")

// Reason explains an auto-save decision.
type Reason string

const (
	ReasonStartLocation Reason = "start_location"
	ReasonRoadChange    Reason = "road_change"
	ReasonTimeInterval  Reason = "time_interval"

	ReasonAutoSaveDisabled Reason = "auto_save_disabled"
	ReasonTripNotActive    Reason = "trip_not_active"
	ReasonMalformedSample  Reason = "malformed_sample"
	ReasonStaleSample      Reason = "stale_sample"
	ReasonNoTriggerEnabled Reason = "no_trigger_enabled"
	ReasonThresholdNotMet  Reason = "threshold_not_met"
)

// Sample is one live location update. An empty RoadName means the road could not be
// resolved; a missing coordinate is carried as geo.Missing().
type Sample struct {
	Coordinate geo.Coordinate
	Altitude   float64
	RoadName   string
	Address    string
	Timestamp  time.Time
}

// WaypointDraft is the data an accepted sample contributes to a new waypoint.
type WaypointDraft struct {
	TripID     uuid.UUID
	Address    string
	RoadName   string
	Coordinate geo.Coordinate
	Altitude   float64
	Timestamp  time.Time
}

// Decision is the outcome of evaluating one sample. Waypoint is set only when Accepted.
type Decision struct {
	Accepted bool
	Reason   Reason

	// Measurements against the last accepted waypoint; zero when there was none.
	DistanceMeters float64
	Elapsed        time.Duration

	// TimeTriggerIgnored is set when the time trigger is on but its interval is outside
	// 30s..3600s, so only the road trigger could fire.
	TimeTriggerIgnored bool

	Waypoint *WaypointDraft
}

// Evaluate decides whether sample becomes a waypoint of t, given the last waypoint
// accepted into t (nil for the first sample of the trip). It reads its inputs only and
// is safe to call concurrently.
//
// Triggers are independent: road change is tried first, then the time interval, and the
// first one satisfied accepts the sample. Both thresholds are inclusive.
func Evaluate(sample Sample, t *Trip, lastAccepted *LocationData) (Decision, error) {
	if t == nil {
		return Decision{}, ErrNilTrip
	}

	cfg := t.AutoSaveConfig()
	if !cfg.IsEnabled {
		return reject(ReasonAutoSaveDisabled), nil
	}
	if !t.IsActive() {
		return reject(ReasonTripNotActive), nil
	}
	if !wellFormed(sample) {
		return reject(ReasonMalformedSample), nil
	}
	if lastAccepted == nil {
		return accept(ReasonStartLocation, sample, t, Decision{}), nil
	}
	if sample.Timestamp.Before(lastAccepted.Timestamp) {
		return reject(ReasonStaleSample), nil
	}

	d := Decision{
		DistanceMeters: geo.Distance(lastAccepted.Coordinate, sample.Coordinate),
		Elapsed:        sample.Timestamp.Sub(lastAccepted.Timestamp),
	}

	roadTrigger := cfg.SaveOnRoadChange
	timeTrigger := cfg.SaveOnTimeInterval && cfg.IsValidTimeInterval()
	d.TimeTriggerIgnored = cfg.SaveOnTimeInterval && !cfg.IsValidTimeInterval()

	if roadTrigger &&
		sample.RoadName != lastAccepted.RoadName &&
		d.DistanceMeters >= cfg.MinimumDistanceMeters {
		return accept(ReasonRoadChange, sample, t, d), nil
	}
	if timeTrigger && d.Elapsed >= cfg.Interval() {
		return accept(ReasonTimeInterval, sample, t, d), nil
	}

	if !roadTrigger && !timeTrigger {
		d.Reason = ReasonNoTriggerEnabled
	} else {
		d.Reason = ReasonThresholdNotMet
	}
	return d, nil
}

func wellFormed(s Sample) bool {
	if !s.Coordinate.Valid() {
		return false
	}
	if math.IsNaN(s.Altitude) || math.IsInf(s.Altitude, 0) {
		return false
	}
	return !s.Timestamp.IsZero()
}

func reject(reason Reason) Decision {
	return Decision{Reason: reason}
}

func accept(reason Reason, s Sample, t *Trip, d Decision) Decision {
	address := s.Address
	if address == "" {
		address = s.RoadName
	}
	d.Accepted = true
	d.Reason = reason
	d.Waypoint = &WaypointDraft{
		TripID:     t.ID(),
		Address:    address,
		RoadName:   s.RoadName,
		Coordinate: s.Coordinate,
		Altitude:   s.Altitude,
		Timestamp:  s.Timestamp,
	}
	return d
}
