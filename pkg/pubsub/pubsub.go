// Package pubsub carries serialized gateway events between the REST API and
// the gateway over the shared Redis instance.
//
// The bus is a single logical channel, eludris-events, and is not
// persistent: events published while a consumer is disconnected are lost,
// and clients re-fetch state on reconnect.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eludris/eludris/internal/logger"
	"github.com/eludris/eludris/pkg/cache"
	"github.com/eludris/eludris/pkg/models"
)

// Channel is the Redis pub/sub channel all events flow through.
const Channel = "eludris-events"

// Publisher serializes server payloads onto the bus.
type Publisher struct {
	cache *cache.Cache
}

// NewPublisher creates a publisher over the shared cache connection.
func NewPublisher(c *cache.Cache) *Publisher {
	return &Publisher{cache: c}
}

// Publish serializes the payload and broadcasts it. Publish failures are
// surfaced to the caller; within a REST request the database write has
// already happened, so callers log and degrade rather than roll back.
func (p *Publisher) Publish(ctx context.Context, payload models.ServerPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize %s event: %w", payload.Op, err)
	}
	if err := p.cache.Client().Publish(ctx, Channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", payload.Op, err)
	}
	return nil
}

// PublishLogged publishes and logs failures instead of returning them, for
// call sites where the mutation has already committed.
func (p *Publisher) PublishLogged(ctx context.Context, payload models.ServerPayload) {
	if err := p.Publish(ctx, payload); err != nil {
		logger.Error("event publish failed", "op", payload.Op, "error", err)
	}
}

// Subscriber consumes the bus. Each gateway socket holds one subscription.
type Subscriber struct {
	cache *cache.Cache
}

// NewSubscriber creates a subscriber over the shared cache connection.
func NewSubscriber(c *cache.Cache) *Subscriber {
	return &Subscriber{cache: c}
}

// Subscribe opens a subscription and returns a channel of decoded payloads.
// Undecodable frames are logged and dropped. The channel closes when ctx is
// cancelled.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan models.ServerPayload, error) {
	sub := s.cache.Client().Subscribe(ctx, Channel)
	// Force the subscription to be established before we report success so
	// callers never miss events they caused themselves.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", Channel, err)
	}

	out := make(chan models.ServerPayload)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var payload models.ServerPayload
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					logger.Warn("dropping undecodable event", "error", err)
					continue
				}
				select {
				case out <- payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
