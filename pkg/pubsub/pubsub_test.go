package pubsub

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
)

func newTestBus(t *testing.T) (*Publisher, *Subscriber) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return NewPublisher(c), NewSubscriber(c)
}

func receive(t *testing.T, events <-chan models.ServerPayload) models.ServerPayload {
	t.Helper()
	select {
	case payload, ok := <-events:
		require.True(t, ok, "event channel closed unexpectedly")
		return payload
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return models.ServerPayload{}
	}
}

func TestPublishSubscribe(t *testing.T) {
	pub, sub := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := sub.Subscribe(ctx)
	require.NoError(t, err)

	content := "hello"
	require.NoError(t, pub.Publish(ctx, models.ServerPayload{
		Op: models.OpMessageCreate,
		D: &models.Message{
			ID:          1,
			ChannelID:   2,
			Content:     &content,
			Attachments: []models.Attachment{},
			Embeds:      []models.Embed{},
			Reactions:   []models.Reaction{},
		},
	}))

	payload := receive(t, events)
	assert.Equal(t, models.OpMessageCreate, payload.Op)
	msg, ok := payload.D.(*models.Message)
	require.True(t, ok)
	assert.Equal(t, uint64(1), msg.ID)
	assert.Equal(t, "hello", *msg.Content)
}

func TestSubscriberDropsUndecodableFrames(t *testing.T) {
	pub, sub := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := sub.Subscribe(ctx)
	require.NoError(t, err)

	// A frame that is not a valid server payload must not kill the stream.
	require.NoError(t, pub.cache.Client().Publish(ctx, Channel, "not json").Err())
	require.NoError(t, pub.Publish(ctx, models.ServerPayload{Op: models.OpPong}))

	payload := receive(t, events)
	assert.Equal(t, models.OpPong, payload.Op)
}

func TestSubscriberClosesOnCancel(t *testing.T) {
	_, sub := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := sub.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("channel did not close after cancel")
	}
}

func TestFanOutToMultipleSubscribers(t *testing.T) {
	pub, sub := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := sub.Subscribe(ctx)
	require.NoError(t, err)
	second, err := sub.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, pub.Publish(ctx, models.ServerPayload{
		Op: models.OpMessageDelete,
		D:  &models.MessageDeleteData{ChannelID: 2, MessageID: 1},
	}))

	for _, events := range []<-chan models.ServerPayload{first, second} {
		payload := receive(t, events)
		assert.Equal(t, models.OpMessageDelete, payload.Op)
	}
}
