package share

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/tripjournal/service-trips/internal/common/domain"
)

// DefaultTTL is how long a share link stays valid when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// reuseMargin is the validity a link must have left to be handed out again.
const reuseMargin = time.Hour

// Link states used in state transition errors.
const (
	StatusLive    = "live"
	StatusExpired = "expired"
	StatusRevoked = "revoked"
)

// SharedTrip is a public, read-only link to a trip's waypoints. It lives until it expires
// or the owner revokes it.
type SharedTrip struct {
	id         uuid.UUID
	tripID     uuid.UUID
	shareToken string
	expiresAt  time.Time
	revokedAt  *time.Time
	createdAt  time.Time
}

// NewSharedTrip creates a link for tripID with a random 32-character token valid for ttl.
func NewSharedTrip(tripID uuid.UUID, ttl time.Duration) (*SharedTrip, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now().UTC()
	return &SharedTrip{
		id:         uuid.New(),
		tripID:     tripID,
		shareToken: token,
		expiresAt:  now.Add(ttl),
		createdAt:  now,
	}, nil
}

// Reconstruct rebuilds a SharedTrip from persistence.
func Reconstruct(id, tripID uuid.UUID, shareToken string, expiresAt time.Time, revokedAt *time.Time, createdAt time.Time) *SharedTrip {
	return &SharedTrip{
		id:         id,
		tripID:     tripID,
		shareToken: shareToken,
		expiresAt:  expiresAt,
		revokedAt:  revokedAt,
		createdAt:  createdAt,
	}
}

// Getters.
func (s *SharedTrip) ID() uuid.UUID         { return s.id }
func (s *SharedTrip) TripID() uuid.UUID     { return s.tripID }
func (s *SharedTrip) ShareToken() string    { return s.shareToken }
func (s *SharedTrip) ExpiresAt() time.Time  { return s.expiresAt }
func (s *SharedTrip) RevokedAt() *time.Time { return s.revokedAt }
func (s *SharedTrip) CreatedAt() time.Time  { return s.createdAt }

// IsExpired returns true if the link's lifetime has passed at now.
func (s *SharedTrip) IsExpired(now time.Time) bool {
	return now.After(s.expiresAt)
}

// Status reports whether the link still opens the trip at now.
func (s *SharedTrip) Status(now time.Time) string {
	switch {
	case s.revokedAt != nil:
		return StatusRevoked
	case s.IsExpired(now):
		return StatusExpired
	default:
		return StatusLive
	}
}

// IsLive returns true if the link is neither revoked nor expired at now.
func (s *SharedTrip) IsLive(now time.Time) bool {
	return s.Status(now) == StatusLive
}

// Reusable reports whether the link can be returned again instead of minting a new one.
// A link close to expiry is not reused so the recipient gets a usable window.
func (s *SharedTrip) Reusable(now time.Time) bool {
	return s.IsLive(now) && s.expiresAt.Sub(now) >= reuseMargin
}

// Revoke closes the link at now. Revoking twice, or revoking an expired link, is an error.
func (s *SharedTrip) Revoke(now time.Time) error {
	if status := s.Status(now); status != StatusLive {
		return domain.NewInvalidStateError(status, StatusRevoked)
	}
	now = now.UTC()
	s.revokedAt = &now
	return nil
}

func generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
