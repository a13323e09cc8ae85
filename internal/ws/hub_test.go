package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(zap.NewNop())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func receive(t *testing.T, c *Client) TripUpdate {
	t.Helper()
	select {
	case data := <-c.Send:
		var u TripUpdate
		require.NoError(t, json.Unmarshal(data, &u))
		return u
	case <-time.After(time.Second):
		t.Fatal("no update received")
		return TripUpdate{}
	}
}

func TestBroadcastReachesOnlyTheTripRoom(t *testing.T) {
	h := startHub(t)
	tripA, tripB := uuid.New(), uuid.New()

	a := &Client{TripID: tripA, Send: make(chan []byte, 4)}
	b := &Client{TripID: tripB, Send: make(chan []byte, 4)}
	require.True(t, h.Register(a))
	require.True(t, h.Register(b))

	wpID := uuid.New()
	h.Broadcast(&TripUpdate{
		Type:   UpdateWaypointSaved,
		TripID: tripA,
		Waypoint: &WaypointUpdate{
			WaypointID: wpID,
			Reason:     "road_change",
			Latitude:   48.85,
			Longitude:  2.35,
		},
	})

	got := receive(t, a)
	assert.Equal(t, UpdateWaypointSaved, got.Type)
	require.NotNil(t, got.Waypoint)
	assert.Equal(t, wpID, got.Waypoint.WaypointID)

	select {
	case <-b.Send:
		t.Fatal("update leaked into another trip room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	h := startHub(t)
	c := &Client{TripID: uuid.New(), Send: make(chan []byte, 1)}
	require.True(t, h.Register(c))
	require.Eventually(t, func() bool { return h.Viewers(c.TripID) == 1 }, time.Second, 5*time.Millisecond)

	h.Unregister(c)
	_, open := <-c.Send
	assert.False(t, open)
	assert.Equal(t, 0, h.Viewers(c.TripID))

	// A second unregister is a no-op.
	h.Unregister(c)
}

func TestSlowClientIsDropped(t *testing.T) {
	h := startHub(t)
	tripID := uuid.New()
	c := &Client{TripID: tripID, Send: make(chan []byte)}
	require.True(t, h.Register(c))

	h.Broadcast(&TripUpdate{Type: UpdateTripEnded, TripID: tripID})

	require.Eventually(t, func() bool { return h.Viewers(tripID) == 0 }, time.Second, 5*time.Millisecond)
}

func TestStoppedHubRejectsRegistration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(zap.NewNop())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	c := &Client{TripID: uuid.New(), Send: make(chan []byte, 1)}
	require.True(t, h.Register(c))
	cancel()
	<-stopped

	_, open := <-c.Send
	assert.False(t, open)
	assert.False(t, h.Register(&Client{TripID: uuid.New(), Send: make(chan []byte, 1)}))
	h.Unregister(c)
}
