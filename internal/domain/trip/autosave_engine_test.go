package trip

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripjournal/service-trips/internal/domain/autosave"
	"github.com/tripjournal/service-trips/internal/domain/geo"
)

var (
	t0     = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	origin = geo.Coordinate{Latitude: 37.3349, Longitude: -122.0090}
)

// metersPerDegree is the haversine length of one degree of latitude.
var metersPerDegree = geo.EarthRadiusMeters * math.Pi / 180

func north(c geo.Coordinate, meters float64) geo.Coordinate {
	return geo.Coordinate{Latitude: c.Latitude + meters/metersPerDegree, Longitude: c.Longitude}
}

func activeTrip(cfg autosave.Configuration) *Trip {
	return Reconstruct(uuid.New(), uuid.New(), "Test trip", "", t0, nil, true, nil, ColorBlue, cfg, 1, t0, t0)
}

func waypointAt(c geo.Coordinate, road string, at time.Time) *LocationData {
	return &LocationData{ID: uuid.New(), Coordinate: c, RoadName: road, Timestamp: at}
}

func sampleAt(c geo.Coordinate, road string, at time.Time) Sample {
	return Sample{Coordinate: c, Altitude: 12, RoadName: road, Timestamp: at}
}

func mustEvaluate(t *testing.T, s Sample, tr *Trip, last *LocationData) Decision {
	t.Helper()
	d, err := Evaluate(s, tr, last)
	require.NoError(t, err)
	return d
}

func roadOnly(minDistance float64) autosave.Configuration {
	return autosave.Configuration{
		IsEnabled:             true,
		TripType:              autosave.TripTypeCustom,
		SaveOnRoadChange:      true,
		MinimumDistanceMeters: minDistance,
	}
}

func timeOnly(minutes, seconds int) autosave.Configuration {
	return autosave.Configuration{
		IsEnabled:             true,
		TripType:              autosave.TripTypeCustom,
		MinimumDistanceMeters: 100,
		SaveOnTimeInterval:    true,
		TimeIntervalMinutes:   minutes,
		TimeIntervalSeconds:   seconds,
	}
}

func TestEvaluateFirstSampleAlwaysAccepted(t *testing.T) {
	configs := map[string]autosave.Configuration{
		"no triggers": {IsEnabled: true, MinimumDistanceMeters: 100},
		"road only":   roadOnly(100),
		"time only":   timeOnly(1, 15),
		"car preset":  autosave.Car(),
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			tr := activeTrip(cfg)
			d := mustEvaluate(t, sampleAt(origin, "Infinite Loop", t0), tr, nil)

			assert.True(t, d.Accepted)
			assert.Equal(t, ReasonStartLocation, d.Reason)
			require.NotNil(t, d.Waypoint)
			assert.Equal(t, tr.ID(), d.Waypoint.TripID)
			assert.Equal(t, origin, d.Waypoint.Coordinate)
		})
	}
}

func TestEvaluateNoTriggersAlwaysRejects(t *testing.T) {
	tr := activeTrip(autosave.Configuration{IsEnabled: true, MinimumDistanceMeters: 50})
	last := waypointAt(origin, "Infinite Loop", t0)

	samples := []Sample{
		sampleAt(north(origin, 5000), "Other Road", t0.Add(2*time.Hour)),
		sampleAt(origin, "Infinite Loop", t0),
		sampleAt(north(origin, 10), "", t0.Add(time.Minute)),
	}
	for _, s := range samples {
		d := mustEvaluate(t, s, tr, last)
		assert.False(t, d.Accepted)
		assert.Equal(t, ReasonNoTriggerEnabled, d.Reason)
		assert.Nil(t, d.Waypoint)
	}
}

func TestEvaluateRoadChange(t *testing.T) {
	tr := activeTrip(roadOnly(100))
	last := waypointAt(origin, "Infinite Loop", t0)

	tests := []struct {
		name     string
		sample   Sample
		accepted bool
		reason   Reason
	}{
		{"different road far enough", sampleAt(north(origin, 150), "De Anza Blvd", t0.Add(time.Minute)), true, ReasonRoadChange},
		{"same road far enough", sampleAt(north(origin, 150), "Infinite Loop", t0.Add(time.Minute)), false, ReasonThresholdNotMet},
		{"different road too close", sampleAt(north(origin, 50), "De Anza Blvd", t0.Add(time.Minute)), false, ReasonThresholdNotMet},
		{"road names are case sensitive", sampleAt(north(origin, 150), "infinite loop", t0.Add(time.Minute)), true, ReasonRoadChange},
		{"unresolved road differs from a resolved one", sampleAt(north(origin, 150), "", t0.Add(time.Minute)), true, ReasonRoadChange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mustEvaluate(t, tt.sample, tr, last)
			assert.Equal(t, tt.accepted, d.Accepted)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestEvaluateUnresolvedRoadsCompareEqual(t *testing.T) {
	tr := activeTrip(roadOnly(100))
	last := waypointAt(origin, "", t0)

	d := mustEvaluate(t, sampleAt(north(origin, 500), "", t0.Add(time.Minute)), tr, last)
	assert.False(t, d.Accepted)
	assert.Equal(t, ReasonThresholdNotMet, d.Reason)
}

func TestEvaluateTimeInterval(t *testing.T) {
	tr := activeTrip(timeOnly(1, 15))
	last := waypointAt(origin, "Infinite Loop", t0)

	at75 := mustEvaluate(t, sampleAt(origin, "Infinite Loop", t0.Add(75*time.Second)), tr, last)
	assert.True(t, at75.Accepted)
	assert.Equal(t, ReasonTimeInterval, at75.Reason)
	assert.Equal(t, 75*time.Second, at75.Elapsed)

	at74 := mustEvaluate(t, sampleAt(origin, "Infinite Loop", t0.Add(74*time.Second)), tr, last)
	assert.False(t, at74.Accepted)
	assert.Equal(t, ReasonThresholdNotMet, at74.Reason)
}

func TestEvaluateInvalidIntervalDisablesTimeTrigger(t *testing.T) {
	tr := activeTrip(timeOnly(0, 15))
	last := waypointAt(origin, "Infinite Loop", t0)

	d := mustEvaluate(t, sampleAt(origin, "Infinite Loop", t0.Add(time.Hour)), tr, last)
	assert.False(t, d.Accepted)
	assert.Equal(t, ReasonNoTriggerEnabled, d.Reason)
	assert.True(t, d.TimeTriggerIgnored)

	withRoad := timeOnly(0, 15)
	withRoad.SaveOnRoadChange = true
	tr = activeTrip(withRoad)

	d = mustEvaluate(t, sampleAt(north(origin, 150), "Mariani Ave", t0.Add(time.Hour)), tr, last)
	assert.True(t, d.Accepted)
	assert.Equal(t, ReasonRoadChange, d.Reason)
	assert.True(t, d.TimeTriggerIgnored)
}

func TestEvaluateRoadChangeWinsOverTime(t *testing.T) {
	tr := activeTrip(autosave.Car())
	last := waypointAt(origin, "Infinite Loop", t0)

	d := mustEvaluate(t, sampleAt(north(origin, 400), "Homestead Rd", t0.Add(time.Hour)), tr, last)
	assert.True(t, d.Accepted)
	assert.Equal(t, ReasonRoadChange, d.Reason)
}

func TestEvaluateStaleSampleAlwaysRejected(t *testing.T) {
	for _, cfg := range []autosave.Configuration{autosave.Car(), roadOnly(50), timeOnly(0, 30)} {
		tr := activeTrip(cfg)
		last := waypointAt(origin, "Infinite Loop", t0)

		d := mustEvaluate(t, sampleAt(north(origin, 5000), "Elsewhere", t0.Add(-time.Second)), tr, last)
		assert.False(t, d.Accepted)
		assert.Equal(t, ReasonStaleSample, d.Reason)
	}
}

func TestEvaluateEqualTimestampIsNotStale(t *testing.T) {
	tr := activeTrip(roadOnly(100))
	last := waypointAt(origin, "Infinite Loop", t0)

	d := mustEvaluate(t, sampleAt(north(origin, 200), "Stevens Creek Blvd", t0), tr, last)
	assert.True(t, d.Accepted)
	assert.Equal(t, ReasonRoadChange, d.Reason)
}

func TestEvaluateDisabledRejectsImmediately(t *testing.T) {
	cfg := autosave.Car()
	cfg.IsEnabled = false
	tr := activeTrip(cfg)

	first := mustEvaluate(t, sampleAt(origin, "Infinite Loop", t0), tr, nil)
	assert.False(t, first.Accepted)
	assert.Equal(t, ReasonAutoSaveDisabled, first.Reason)

	malformed := mustEvaluate(t, Sample{Coordinate: geo.Missing(), Timestamp: t0}, tr, nil)
	assert.Equal(t, ReasonAutoSaveDisabled, malformed.Reason)
}

func TestEvaluateEndedTripRejects(t *testing.T) {
	tr := activeTrip(autosave.Car())
	require.NoError(t, tr.End(t0.Add(time.Hour)))

	d := mustEvaluate(t, sampleAt(origin, "Infinite Loop", t0.Add(2*time.Hour)), tr, nil)
	assert.False(t, d.Accepted)
	assert.Equal(t, ReasonTripNotActive, d.Reason)
}

func TestEvaluateMalformedSamples(t *testing.T) {
	tr := activeTrip(autosave.Car())
	last := waypointAt(origin, "Infinite Loop", t0)

	tests := map[string]Sample{
		"missing coordinate":    {Coordinate: geo.Missing(), Timestamp: t0.Add(time.Hour)},
		"latitude out of range": {Coordinate: geo.Coordinate{Latitude: 91, Longitude: 0}, Timestamp: t0.Add(time.Hour)},
		"infinite longitude":    {Coordinate: geo.Coordinate{Latitude: 0, Longitude: math.Inf(-1)}, Timestamp: t0.Add(time.Hour)},
		"nan altitude":          {Coordinate: origin, Altitude: math.NaN(), Timestamp: t0.Add(time.Hour)},
		"infinite altitude":     {Coordinate: origin, Altitude: math.Inf(1), Timestamp: t0.Add(time.Hour)},
		"zero timestamp":        {Coordinate: origin},
	}

	for name, s := range tests {
		t.Run(name, func(t *testing.T) {
			d := mustEvaluate(t, s, tr, last)
			assert.False(t, d.Accepted)
			assert.Equal(t, ReasonMalformedSample, d.Reason)

			first := mustEvaluate(t, s, tr, nil)
			assert.Equal(t, ReasonMalformedSample, first.Reason)
		})
	}
}

func TestEvaluateNilTrip(t *testing.T) {
	_, err := Evaluate(sampleAt(origin, "", t0), nil, nil)
	assert.True(t, errors.Is(err, ErrNilTrip))
}

func TestEvaluateIsDeterministic(t *testing.T) {
	tr := activeTrip(autosave.Bicycle())
	last := waypointAt(origin, "Infinite Loop", t0)
	s := sampleAt(north(origin, 120), "N De Anza Blvd", t0.Add(90*time.Second))

	first := mustEvaluate(t, s, tr, last)
	second := mustEvaluate(t, s, tr, last)
	assert.Equal(t, first, second)
}

func TestEvaluateAddressFallsBackToRoadName(t *testing.T) {
	tr := activeTrip(autosave.Car())

	d := mustEvaluate(t, sampleAt(origin, "Infinite Loop", t0), tr, nil)
	require.NotNil(t, d.Waypoint)
	assert.Equal(t, "Infinite Loop", d.Waypoint.Address)

	s := sampleAt(origin, "Infinite Loop", t0)
	s.Address = "1 Infinite Loop, Cupertino, CA"
	d = mustEvaluate(t, s, tr, nil)
	assert.Equal(t, "1 Infinite Loop, Cupertino, CA", d.Waypoint.Address)
}

func TestEvaluateCarTripScenario(t *testing.T) {
	tr := activeTrip(autosave.Car())

	start := mustEvaluate(t, sampleAt(origin, "Infinite Loop", t0), tr, nil)
	require.True(t, start.Accepted)
	last := waypointAt(start.Waypoint.Coordinate, start.Waypoint.RoadName, start.Waypoint.Timestamp)

	nearby := mustEvaluate(t, sampleAt(north(origin, 20), "Infinite Loop", t0.Add(50*time.Second)), tr, last)
	assert.False(t, nearby.Accepted)
	assert.Equal(t, ReasonThresholdNotMet, nearby.Reason)
	assert.InDelta(t, 20, nearby.DistanceMeters, 0.01)

	later := mustEvaluate(t, sampleAt(origin, "Infinite Loop", t0.Add(400*time.Second)), tr, last)
	assert.True(t, later.Accepted)
	assert.Equal(t, ReasonTimeInterval, later.Reason)
}
