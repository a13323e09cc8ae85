package trip

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tripjournal/service-trips/internal/common/domain"
	"github.com/tripjournal/service-trips/internal/domain/autosave"
)

// Status names used in state transition errors.
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// MaxStartSkew is how far past the server clock a client-supplied start date may lie.
const MaxStartSkew = 5 * time.Minute

// Color is the display tag of a trip.
type Color string

const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorOrange Color = "orange"
	ColorPurple Color = "purple"
	ColorRed    Color = "red"
	ColorTeal   Color = "teal"
	ColorYellow Color = "yellow"
)

// IsValid returns true if the color is part of the palette.
func (c Color) IsValid() bool {
	switch c {
	case ColorBlue, ColorGreen, ColorOrange, ColorPurple, ColorRed, ColorTeal, ColorYellow:
		return true
	}
	return false
}

// Trip is the aggregate root for a journey: an ordered list of waypoints plus the
// auto-save policy that feeds it.
type Trip struct {
	id             uuid.UUID
	ownerID        uuid.UUID
	name           string
	description    string
	startDate      time.Time
	endDate        *time.Time
	isActive       bool
	locationIDs    []uuid.UUID
	color          Color
	autoSaveConfig autosave.Configuration
	version        int64
	createdAt      time.Time
	updatedAt      time.Time
}

// NewTrip creates a new active trip for owner starting at startDate.
func NewTrip(ownerID uuid.UUID, name, description string, color Color, cfg autosave.Configuration, startDate time.Time) (*Trip, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if color == "" {
		color = ColorBlue
	}
	if !color.IsValid() {
		return nil, domain.NewValidationError("color", "is not part of the palette")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if startDate.IsZero() {
		startDate = now
	}
	if startDate.After(now.Add(MaxStartSkew)) {
		return nil, domain.NewValidationError("startDate", "must not be in the future")
	}

	return &Trip{
		id:             uuid.New(),
		ownerID:        ownerID,
		name:           name,
		description:    strings.TrimSpace(description),
		startDate:      startDate.UTC(),
		isActive:       true,
		locationIDs:    []uuid.UUID{},
		color:          color,
		autoSaveConfig: cfg.Retagged(),
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// --- Getters ---

// ID returns the trip's unique identifier.
func (t *Trip) ID() uuid.UUID { return t.id }

// OwnerID returns the journaling user the trip belongs to.
func (t *Trip) OwnerID() uuid.UUID { return t.ownerID }

// Name returns the display name.
func (t *Trip) Name() string { return t.name }

// Description returns the optional description ("" when unset).
func (t *Trip) Description() string { return t.description }

// StartDate returns when the trip started.
func (t *Trip) StartDate() time.Time { return t.startDate }

// EndDate returns when the trip ended (nil while active).
func (t *Trip) EndDate() *time.Time { return t.endDate }

// IsActive returns true until the trip is ended.
func (t *Trip) IsActive() bool { return t.isActive }

// LocationIDs returns a copy of the waypoint identifiers in acceptance order.
func (t *Trip) LocationIDs() []uuid.UUID {
	out := make([]uuid.UUID, len(t.locationIDs))
	copy(out, t.locationIDs)
	return out
}

// Color returns the display tag.
func (t *Trip) Color() Color { return t.color }

// AutoSaveConfig returns the trip's current auto-save policy.
func (t *Trip) AutoSaveConfig() autosave.Configuration { return t.autoSaveConfig }

// Version returns the version for optimistic locking.
func (t *Trip) Version() int64 { return t.version }

// CreatedAt returns when the record was created.
func (t *Trip) CreatedAt() time.Time { return t.createdAt }

// UpdatedAt returns when the record was last updated.
func (t *Trip) UpdatedAt() time.Time { return t.updatedAt }

// Status returns StatusActive or StatusEnded.
func (t *Trip) Status() string {
	if t.isActive {
		return StatusActive
	}
	return StatusEnded
}

// --- Behavior ---

// Rename changes the display name. Allowed after the trip ended.
func (t *Trip) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.NewValidationError("name", "is required")
	}
	t.name = name
	t.touch()
	return nil
}

// Describe replaces the description. Allowed after the trip ended.
func (t *Trip) Describe(description string) {
	t.description = strings.TrimSpace(description)
	t.touch()
}

// Recolor changes the display tag. Allowed after the trip ended.
func (t *Trip) Recolor(color Color) error {
	if !color.IsValid() {
		return domain.NewValidationError("color", "is not part of the palette")
	}
	t.color = color
	t.touch()
	return nil
}

// UpdateAutoSaveConfig replaces the policy, relabelling it against the presets.
// The next evaluated sample sees the new value.
func (t *Trip) UpdateAutoSaveConfig(cfg autosave.Configuration) error {
	if !t.isActive {
		return domain.NewInvalidStateError(StatusEnded, "autosave_updated")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	t.autoSaveConfig = cfg.Retagged()
	t.touch()
	return nil
}

// ApplyPreset switches the trigger fields to a named preset, keeping the master switch.
func (t *Trip) ApplyPreset(tripType autosave.TripType) error {
	p, ok := autosave.Preset(tripType)
	if !ok {
		return domain.NewValidationError("tripType", "must be walking, bicycle or car")
	}
	p.IsEnabled = t.autoSaveConfig.IsEnabled
	return t.UpdateAutoSaveConfig(p)
}

// AppendLocation records an accepted waypoint at the end of the trip.
func (t *Trip) AppendLocation(id uuid.UUID) error {
	if !t.isActive {
		return domain.NewInvalidStateError(StatusEnded, "location_appended")
	}
	t.locationIDs = append(t.locationIDs, id)
	t.touch()
	return nil
}

// RemoveLocation drops a waypoint reference. It reports whether the id was present.
func (t *Trip) RemoveLocation(id uuid.UUID) bool {
	for i, existing := range t.locationIDs {
		if existing == id {
			t.locationIDs = append(t.locationIDs[:i], t.locationIDs[i+1:]...)
			t.touch()
			return true
		}
	}
	return false
}

// End transitions the trip from active to ended at the given instant. An instant before
// the start date is clamped to it, so an active trip can always be ended.
func (t *Trip) End(at time.Time) error {
	if !t.isActive {
		return domain.NewInvalidStateError(StatusEnded, StatusEnded)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if at.Before(t.startDate) {
		at = t.startDate
	}
	at = at.UTC()
	t.endDate = &at
	t.isActive = false
	t.touch()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (t *Trip) IncrementVersion() {
	t.version++
	t.updatedAt = time.Now().UTC()
}

func (t *Trip) touch() {
	t.updatedAt = time.Now().UTC()
}

// --- Reconstruction from persistence ---

// Reconstruct creates a Trip from persisted data (used by repositories).
func Reconstruct(
	id, ownerID uuid.UUID,
	name, description string,
	startDate time.Time,
	endDate *time.Time,
	isActive bool,
	locationIDs []uuid.UUID,
	color Color,
	cfg autosave.Configuration,
	version int64,
	createdAt, updatedAt time.Time,
) *Trip {
	if locationIDs == nil {
		locationIDs = []uuid.UUID{}
	}
	return &Trip{
		id:             id,
		ownerID:        ownerID,
		name:           name,
		description:    description,
		startDate:      startDate,
		endDate:        endDate,
		isActive:       isActive,
		locationIDs:    locationIDs,
		color:          color,
		autoSaveConfig: cfg,
		version:        version,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}
