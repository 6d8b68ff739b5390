// Package presence tracks which users have active gateway sessions.
//
// For each user the cache holds a counter session:{user_id} and membership
// in the sessions set. Presence events fire only on 0↔1 transitions of the
// counter, so a user with several sockets goes online once and offline once.
package presence

import (
	"context"
	"fmt"
	"strconv"

	"github.com/eludris/eludris/pkg/cache"
	"github.com/eludris/eludris/pkg/models"
	"github.com/eludris/eludris/pkg/pubsub"
)

const sessionsSetKey = "sessions"

func counterKey(userID uint64) string {
	return fmt.Sprintf("session:%d", userID)
}

// Service maintains session counters and publishes presence transitions.
type Service struct {
	cache     *cache.Cache
	publisher *pubsub.Publisher
}

// NewService creates a presence service.
func NewService(c *cache.Cache, publisher *pubsub.Publisher) *Service {
	return &Service{cache: c, publisher: publisher}
}

// Connect records an authenticated gateway session for the user. On the
// user's first session it adds them to the online set and, unless their
// stored status is OFFLINE, publishes a PRESENCE_UPDATE with that status.
func (s *Service) Connect(ctx context.Context, user models.User) error {
	count, err := s.cache.Incr(ctx, counterKey(user.ID))
	if err != nil {
		return fmt.Errorf("failed to increment session counter: %w", err)
	}
	if count != 1 {
		return nil
	}
	if err := s.cache.SetAdd(ctx, sessionsSetKey, strconv.FormatUint(user.ID, 10)); err != nil {
		return fmt.Errorf("failed to add user to sessions set: %w", err)
	}
	if user.Status.Type != models.StatusOffline {
		s.publisher.PublishLogged(ctx, models.ServerPayload{
			Op: models.OpPresenceUpdate,
			D: &models.PresenceUpdateData{
				UserID: user.ID,
				Status: user.Status,
			},
		})
	}
	return nil
}

// Disconnect records a gateway session ending. When the last session closes
// it removes the user from the online set and, if their stored status is not
// already OFFLINE, publishes an OFFLINE PRESENCE_UPDATE.
func (s *Service) Disconnect(ctx context.Context, user models.User) error {
	count, err := s.cache.Decr(ctx, counterKey(user.ID))
	if err != nil {
		return fmt.Errorf("failed to decrement session counter: %w", err)
	}
	if count > 0 {
		return nil
	}
	if err := s.cache.SetRemove(ctx, sessionsSetKey, strconv.FormatUint(user.ID, 10)); err != nil {
		return fmt.Errorf("failed to remove user from sessions set: %w", err)
	}
	if user.Status.Type != models.StatusOffline {
		s.publisher.PublishLogged(ctx, models.ServerPayload{
			Op: models.OpPresenceUpdate,
			D: &models.PresenceUpdateData{
				UserID: user.ID,
				Status: models.Status{Type: models.StatusOffline},
			},
		})
	}
	return nil
}

// Online reports whether the user currently has any gateway session.
func (s *Service) Online(ctx context.Context, userID uint64) (bool, error) {
	return s.cache.SetContains(ctx, sessionsSetKey, strconv.FormatUint(userID, 10))
}
