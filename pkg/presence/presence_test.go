package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eludris/eludris/pkg/cache"
	"github.com/eludris/eludris/pkg/models"
	"github.com/eludris/eludris/pkg/pubsub"
)

func newTestPresence(t *testing.T) (*Service, <-chan models.ServerPayload) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	events, err := pubsub.NewSubscriber(c).Subscribe(ctx)
	require.NoError(t, err)

	return NewService(c, pubsub.NewPublisher(c)), events
}

func expectPresence(t *testing.T, events <-chan models.ServerPayload, userID uint64, status models.StatusType) {
	t.Helper()
	select {
	case payload := <-events:
		require.Equal(t, models.OpPresenceUpdate, payload.Op)
		data, ok := payload.D.(*models.PresenceUpdateData)
		require.True(t, ok)
		assert.Equal(t, userID, data.UserID)
		assert.Equal(t, status, data.Status.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for presence event")
	}
}

func expectSilence(t *testing.T, events <-chan models.ServerPayload) {
	t.Helper()
	select {
	case payload := <-events:
		t.Fatalf("unexpected event: %s", payload.Op)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPresenceTransitions(t *testing.T) {
	ctx := context.Background()
	user := models.User{ID: 42, Status: models.Status{Type: models.StatusOnline}}

	t.Run("FirstSessionGoesOnline", func(t *testing.T) {
		svc, events := newTestPresence(t)

		require.NoError(t, svc.Connect(ctx, user))
		expectPresence(t, events, 42, models.StatusOnline)

		online, err := svc.Online(ctx, 42)
		require.NoError(t, err)
		assert.True(t, online)
	})

	t.Run("SecondSessionIsSilent", func(t *testing.T) {
		svc, events := newTestPresence(t)

		require.NoError(t, svc.Connect(ctx, user))
		expectPresence(t, events, 42, models.StatusOnline)

		require.NoError(t, svc.Connect(ctx, user))
		expectSilence(t, events)
	})

	t.Run("LastDisconnectGoesOffline", func(t *testing.T) {
		svc, events := newTestPresence(t)

		require.NoError(t, svc.Connect(ctx, user))
		require.NoError(t, svc.Connect(ctx, user))
		expectPresence(t, events, 42, models.StatusOnline)

		require.NoError(t, svc.Disconnect(ctx, user))
		expectSilence(t, events)

		online, err := svc.Online(ctx, 42)
		require.NoError(t, err)
		assert.True(t, online)

		require.NoError(t, svc.Disconnect(ctx, user))
		expectPresence(t, events, 42, models.StatusOffline)

		online, err = svc.Online(ctx, 42)
		require.NoError(t, err)
		assert.False(t, online)
	})

	t.Run("OfflineStatusPublishesNothing", func(t *testing.T) {
		svc, events := newTestPresence(t)
		invisible := models.User{ID: 7, Status: models.Status{Type: models.StatusOffline}}

		require.NoError(t, svc.Connect(ctx, invisible))
		expectSilence(t, events)

		// The session is still tracked even though nothing was announced.
		online, err := svc.Online(ctx, 7)
		require.NoError(t, err)
		assert.True(t, online)

		require.NoError(t, svc.Disconnect(ctx, invisible))
		expectSilence(t, events)
	})
}
