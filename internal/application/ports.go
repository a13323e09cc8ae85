package application

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tripjournal/service-trips/internal/common/kafka"
	"github.com/tripjournal/service-trips/internal/ws"
)

// serviceName is the CloudEvents source of everything this service publishes.
const serviceName = "service-trips"

// Broadcaster pushes live updates to the viewers of a trip.
type Broadcaster interface {
	Broadcast(update *ws.TripUpdate)
}

// EventPublisher publishes CloudEvents to a topic.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, evt *kafka.CloudEvent) error
}

// TripLocks serializes work on a single trip. Operations on different trips never wait
// on each other. Entries are dropped once nobody holds or waits for them.
type TripLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*tripLock
}

type tripLock struct {
	mu   sync.Mutex
	refs int
}

// NewTripLocks creates an empty lock table.
func NewTripLocks() *TripLocks {
	return &TripLocks{locks: make(map[uuid.UUID]*tripLock)}
}

// Lock blocks until tripID is free and returns the matching unlock function.
func (l *TripLocks) Lock(tripID uuid.UUID) (unlock func()) {
	l.mu.Lock()
	tl, ok := l.locks[tripID]
	if !ok {
		tl = &tripLock{}
		l.locks[tripID] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.mu.Lock()
	return func() {
		tl.mu.Unlock()

		l.mu.Lock()
		tl.refs--
		if tl.refs == 0 {
			delete(l.locks, tripID)
		}
		l.mu.Unlock()
	}
}

func (l *TripLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
