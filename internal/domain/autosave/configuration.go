// Package autosave describes the policy that decides when a live location sample is
// captured into the active trip.
package autosave

import (
	"encoding/json"
	"time"

	"github.com/tripjournal/service-trips/internal/common/domain"
)

// TripType labels a configuration with the preset it corresponds to.
type TripType string

const (
	TripTypeWalking TripType = "walking"
	TripTypeBicycle TripType = "bicycle"
	TripTypeCar     TripType = "car"
	TripTypeCustom  TripType = "custom"
)

// IsValid returns true if the trip type is recognized.
func (t TripType) IsValid() bool {
	switch t {
	case TripTypeWalking, TripTypeBicycle, TripTypeCar, TripTypeCustom:
		return true
	}
	return false
}

// TriggerMode is the persisted road/time/both view of the two trigger toggles.
type TriggerMode string

const (
	TriggerNone TriggerMode = "none"
	TriggerRoad TriggerMode = "road"
	TriggerTime TriggerMode = "time"
	TriggerBoth TriggerMode = "both"
)

// Bounds on user-editable values.
const (
	MinDistanceMeters = 50.0
	MaxDistanceMeters = 1000.0

	MinIntervalSeconds = 30
	MaxIntervalSeconds = 3600

	MaxIntervalMinutes = 59
)

// allowedSeconds is the seconds picker domain.
var allowedSeconds = map[int]bool{0: true, 15: true, 30: true, 45: true}

// Configuration is the auto-save policy of a trip. It is a plain value: copies never
// share state.
type Configuration struct {
	IsEnabled             bool     `json:"isEnabled"`
	TripType              TripType `json:"tripType"`
	SaveOnRoadChange      bool     `json:"saveOnRoadChange"`
	MinimumDistanceMeters float64  `json:"minimumDistanceMeters"`
	SaveOnTimeInterval    bool     `json:"saveOnTimeInterval"`
	TimeIntervalMinutes   int      `json:"timeIntervalMinutes"`
	TimeIntervalSeconds   int      `json:"timeIntervalSeconds"`
}

// Walking returns the walking preset: 50 m on road change, every 10 minutes.
func Walking() Configuration {
	return preset(TripTypeWalking, 50, 10, 0)
}

// Bicycle returns the bicycle preset: 100 m on road change, every 5 minutes.
func Bicycle() Configuration {
	return preset(TripTypeBicycle, 100, 5, 0)
}

// Car returns the car preset: 200 m on road change, every 3 minutes.
func Car() Configuration {
	return preset(TripTypeCar, 200, 3, 0)
}

// Default is the configuration given to trips started without one.
func Default() Configuration {
	return Walking()
}

// Preset returns the preset for t. The second result is false for custom or unknown types.
func Preset(t TripType) (Configuration, bool) {
	switch t {
	case TripTypeWalking:
		return Walking(), true
	case TripTypeBicycle:
		return Bicycle(), true
	case TripTypeCar:
		return Car(), true
	}
	return Configuration{}, false
}

// Presets lists every named preset.
func Presets() []Configuration {
	return []Configuration{Walking(), Bicycle(), Car()}
}

func preset(t TripType, distance float64, minutes, seconds int) Configuration {
	return Configuration{
		IsEnabled:             true,
		TripType:              t,
		SaveOnRoadChange:      true,
		MinimumDistanceMeters: distance,
		SaveOnTimeInterval:    true,
		TimeIntervalMinutes:   minutes,
		TimeIntervalSeconds:   seconds,
	}
}

// TotalIntervalSeconds is minutes*60 + seconds.
func (c Configuration) TotalIntervalSeconds() int {
	return c.TimeIntervalMinutes*60 + c.TimeIntervalSeconds
}

// Interval is the time trigger interval as a duration.
func (c Configuration) Interval() time.Duration {
	return time.Duration(c.TotalIntervalSeconds()) * time.Second
}

// IsValidTimeInterval reports whether the interval is within 30s..3600s inclusive.
func (c Configuration) IsValidTimeInterval() bool {
	total := c.TotalIntervalSeconds()
	return total >= MinIntervalSeconds && total <= MaxIntervalSeconds
}

// TriggerMode derives which triggers are switched on.
func (c Configuration) TriggerMode() TriggerMode {
	switch {
	case c.SaveOnRoadChange && c.SaveOnTimeInterval:
		return TriggerBoth
	case c.SaveOnRoadChange:
		return TriggerRoad
	case c.SaveOnTimeInterval:
		return TriggerTime
	}
	return TriggerNone
}

// MatchesPreset compares the trigger fields of c and other. IsEnabled and TripType are
// not part of the comparison.
func (c Configuration) MatchesPreset(other Configuration) bool {
	return c.SaveOnRoadChange == other.SaveOnRoadChange &&
		c.MinimumDistanceMeters == other.MinimumDistanceMeters &&
		c.SaveOnTimeInterval == other.SaveOnTimeInterval &&
		c.TimeIntervalMinutes == other.TimeIntervalMinutes &&
		c.TimeIntervalSeconds == other.TimeIntervalSeconds
}

// MatchingTripType returns the preset label whose trigger fields equal c, or custom.
func (c Configuration) MatchingTripType() TripType {
	for _, p := range Presets() {
		if c.MatchesPreset(p) {
			return p.TripType
		}
	}
	return TripTypeCustom
}

// Apply returns a copy of c with change applied and TripType recomputed.
func (c Configuration) Apply(change func(*Configuration)) Configuration {
	next := c
	if change != nil {
		change(&next)
	}
	next.TripType = next.MatchingTripType()
	return next
}

// Retagged returns c with TripType recomputed from its trigger fields.
func (c Configuration) Retagged() Configuration {
	return c.Apply(nil)
}

// Validate checks user-supplied values against their field domains.
func (c Configuration) Validate() error {
	if !c.TripType.IsValid() {
		return domain.NewValidationError("tripType", "must be walking, bicycle, car or custom")
	}
	if c.MinimumDistanceMeters < MinDistanceMeters || c.MinimumDistanceMeters > MaxDistanceMeters {
		return domain.NewValidationError("minimumDistanceMeters", "must be between 50 and 1000")
	}
	if c.TimeIntervalMinutes < 0 || c.TimeIntervalMinutes > MaxIntervalMinutes {
		return domain.NewValidationError("timeIntervalMinutes", "must be between 0 and 59")
	}
	if !allowedSeconds[c.TimeIntervalSeconds] {
		return domain.NewValidationError("timeIntervalSeconds", "must be one of 0, 15, 30, 45")
	}
	// A too-short interval is accepted here and surfaced through IsValidTimeInterval;
	// the engine then ignores the time trigger.
	return nil
}

// UnmarshalJSON decodes a stored configuration. Trips saved before a trip type existed,
// or with a label this build does not know, decode as custom.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	type plain Configuration
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if !p.TripType.IsValid() {
		p.TripType = TripTypeCustom
	}
	*c = Configuration(p)
	return nil
}
