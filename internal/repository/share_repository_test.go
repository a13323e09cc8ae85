package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripjournal/service-trips/internal/common/domain"
	shareDomain "github.com/tripjournal/service-trips/internal/domain/share"
)

func TestSharedTripRepositoryFind(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSharedTripRepository(newTestDB(t))
	tripID := uuid.New()

	st, err := shareDomain.NewSharedTrip(tripID, time.Hour)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, st))

	byToken, err := repo.FindByToken(ctx, st.ShareToken())
	require.NoError(t, err)
	assert.Equal(t, st.ID(), byToken.ID())
	assert.Equal(t, tripID, byToken.TripID())

	byTrip, err := repo.FindByTripID(ctx, tripID)
	require.NoError(t, err)
	assert.Equal(t, st.ShareToken(), byTrip.ShareToken())

	_, err = repo.FindByToken(ctx, "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = repo.FindByTripID(ctx, uuid.New())
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSharedTripRepositoryDeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSharedTripRepository(newTestDB(t))
	now := time.Now().UTC()

	expired := shareDomain.Reconstruct(uuid.New(), uuid.New(), "expired-token", now.Add(-time.Minute), nil, now.Add(-time.Hour))
	live := shareDomain.Reconstruct(uuid.New(), uuid.New(), "live-token", now.Add(time.Hour), nil, now)
	require.NoError(t, repo.Save(ctx, expired))
	require.NoError(t, repo.Save(ctx, live))

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.FindByToken(ctx, "expired-token")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = repo.FindByToken(ctx, "live-token")
	assert.NoError(t, err)
}

func TestSharedTripRepositoryRevoke(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSharedTripRepository(newTestDB(t))
	tripID := uuid.New()

	older := shareDomain.Reconstruct(uuid.New(), tripID, "older-token", time.Now().UTC().Add(time.Hour), nil, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, repo.Save(ctx, older))
	st, err := shareDomain.NewSharedTrip(tripID, time.Hour)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, st))

	newest, err := repo.FindByTripID(ctx, tripID)
	require.NoError(t, err)
	assert.Equal(t, st.ShareToken(), newest.ShareToken())

	require.NoError(t, newest.Revoke(time.Now().Add(-time.Second)))
	require.NoError(t, repo.Update(ctx, newest))

	found, err := repo.FindByToken(ctx, st.ShareToken())
	require.NoError(t, err)
	require.NotNil(t, found.RevokedAt())
	assert.Equal(t, shareDomain.StatusRevoked, found.Status(time.Now()))

	n, err := repo.DeleteExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.FindByToken(ctx, "older-token")
	assert.NoError(t, err)

	missing := shareDomain.Reconstruct(uuid.New(), tripID, "missing", time.Now().Add(time.Hour), nil, time.Now())
	assert.True(t, errors.Is(repo.Update(ctx, missing), domain.ErrNotFound))
}
