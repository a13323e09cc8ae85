package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tripjournal/service-trips/internal/common/domain"
	"github.com/tripjournal/service-trips/internal/common/kafka"
	shareDomain "github.com/tripjournal/service-trips/internal/domain/share"
	tripDomain "github.com/tripjournal/service-trips/internal/domain/trip"
	"github.com/tripjournal/service-trips/internal/ws"
)

// memTripRepo is an in-memory trip.Repository. Trips are stored as snapshots so callers
// never share an aggregate with the store.
type memTripRepo struct {
	mu        sync.Mutex
	trips     map[uuid.UUID]*tripDomain.Trip
	waypoints map[uuid.UUID][]tripDomain.LocationData
	commits   int
}

func newMemTripRepo() *memTripRepo {
	return &memTripRepo{
		trips:     make(map[uuid.UUID]*tripDomain.Trip),
		waypoints: make(map[uuid.UUID][]tripDomain.LocationData),
	}
}

var _ tripDomain.Repository = (*memTripRepo)(nil)

func (r *memTripRepo) snapshot(t *tripDomain.Trip) *tripDomain.Trip {
	ids := make([]uuid.UUID, 0, len(r.waypoints[t.ID()]))
	for _, wp := range r.waypoints[t.ID()] {
		ids = append(ids, wp.ID)
	}
	return tripDomain.Reconstruct(
		t.ID(), t.OwnerID(), t.Name(), t.Description(), t.StartDate(), t.EndDate(),
		t.IsActive(), ids, t.Color(), t.AutoSaveConfig(), t.Version(), t.CreatedAt(), t.UpdatedAt(),
	)
}

func (r *memTripRepo) FindByID(_ context.Context, id uuid.UUID) (*tripDomain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.snapshot(t), nil
}

func (r *memTripRepo) FindActiveByOwnerID(_ context.Context, ownerID uuid.UUID) (*tripDomain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.trips {
		if t.OwnerID() == ownerID && t.IsActive() {
			return r.snapshot(t), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memTripRepo) ListByOwnerID(_ context.Context, ownerID uuid.UUID) ([]*tripDomain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*tripDomain.Trip{}
	for _, t := range r.trips {
		if t.OwnerID() == ownerID {
			out = append(out, r.snapshot(t))
		}
	}
	return out, nil
}

func (r *memTripRepo) Save(_ context.Context, t *tripDomain.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.trips {
		if existing.OwnerID() == t.OwnerID() && existing.IsActive() && t.IsActive() {
			return domain.ErrConflict
		}
	}
	r.trips[t.ID()] = r.snapshot(t)
	return nil
}

func (r *memTripRepo) Update(_ context.Context, t *tripDomain.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.trips[t.ID()]
	if !ok || existing.Version() != t.Version()-1 {
		return domain.ErrOptimisticLock
	}
	r.trips[t.ID()] = r.snapshot(t)
	return nil
}

func (r *memTripRepo) LastWaypoint(_ context.Context, tripID uuid.UUID) (*tripDomain.LocationData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wps := r.waypoints[tripID]
	if len(wps) == 0 {
		return nil, nil
	}
	last := wps[len(wps)-1]
	return &last, nil
}

func (r *memTripRepo) CommitWaypoint(_ context.Context, tripID uuid.UUID, wp tripDomain.LocationData) (tripDomain.LocationData, error) {
	// Widen the window between the engine's read and this write.
	time.Sleep(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[tripID]
	if !ok {
		return tripDomain.LocationData{}, domain.NewNotFoundError("trip", tripID.String())
	}
	if !t.IsActive() {
		return tripDomain.LocationData{}, domain.NewInvalidStateError(tripDomain.StatusEnded, "location_appended")
	}
	wp.TripID = tripID
	r.waypoints[tripID] = append(r.waypoints[tripID], wp)
	r.commits++
	return wp, nil
}

func (r *memTripRepo) FindWaypoint(_ context.Context, id uuid.UUID) (*tripDomain.LocationData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, wps := range r.waypoints {
		for _, wp := range wps {
			if wp.ID == id {
				found := wp
				return &found, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memTripRepo) UpdateWaypoint(_ context.Context, wp tripDomain.LocationData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wps := r.waypoints[wp.TripID]
	for i := range wps {
		if wps[i].ID == wp.ID {
			wps[i].Comment = wp.Comment
			wps[i].PhotoIdentifiers = wp.PhotoIdentifiers
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *memTripRepo) DeleteWaypoint(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tripID, wps := range r.waypoints {
		for i, wp := range wps {
			if wp.ID == id {
				r.waypoints[tripID] = append(wps[:i:i], wps[i+1:]...)
				return nil
			}
		}
	}
	return domain.ErrNotFound
}

func (r *memTripRepo) Waypoints(_ context.Context, tripID uuid.UUID) ([]tripDomain.LocationData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tripDomain.LocationData, len(r.waypoints[tripID]))
	copy(out, r.waypoints[tripID])
	return out, nil
}

func (r *memTripRepo) commitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

type memShareRepo struct {
	mu    sync.Mutex
	links map[string]*shareDomain.SharedTrip
}

func newMemShareRepo() *memShareRepo {
	return &memShareRepo{links: make(map[string]*shareDomain.SharedTrip)}
}

func (r *memShareRepo) Save(_ context.Context, st *shareDomain.SharedTrip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[st.ShareToken()] = st
	return nil
}

func (r *memShareRepo) FindByToken(_ context.Context, token string) (*shareDomain.SharedTrip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.links[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st, nil
}

func (r *memShareRepo) Update(_ context.Context, st *shareDomain.SharedTrip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.links[st.ShareToken()]; !ok {
		return domain.ErrNotFound
	}
	r.links[st.ShareToken()] = st
	return nil
}

func (r *memShareRepo) FindByTripID(_ context.Context, tripID uuid.UUID) (*shareDomain.SharedTrip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *shareDomain.SharedTrip
	for _, st := range r.links {
		if st.TripID() == tripID && (newest == nil || st.CreatedAt().After(newest.CreatedAt())) {
			newest = st
		}
	}
	if newest == nil {
		return nil, domain.ErrNotFound
	}
	return newest, nil
}

func (r *memShareRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for token, st := range r.links {
		if st.IsExpired(now) || st.RevokedAt() != nil {
			delete(r.links, token)
			n++
		}
	}
	return n, nil
}

type recordingHub struct {
	mu      sync.Mutex
	updates []*ws.TripUpdate
}

func (h *recordingHub) Broadcast(update *ws.TripUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, update)
}

func (h *recordingHub) all() []*ws.TripUpdate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*ws.TripUpdate(nil), h.updates...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	fail   bool
	events []*kafka.CloudEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _ string, evt *kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// gatedPublisher holds events of one type until release is closed.
type gatedPublisher struct {
	recordingPublisher
	gateType string
	entered  chan struct{}
	release  chan struct{}
}

func newGatedPublisher(gateType string) *gatedPublisher {
	return &gatedPublisher{
		gateType: gateType,
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
}

func (p *gatedPublisher) PublishEvent(ctx context.Context, topic string, evt *kafka.CloudEvent) error {
	if evt.Type == p.gateType {
		p.entered <- struct{}{}
		<-p.release
	}
	return p.recordingPublisher.PublishEvent(ctx, topic, evt)
}
