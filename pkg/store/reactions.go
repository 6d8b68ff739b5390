package store

import (
	"context"

	"github.com/eludris/eludris/pkg/models"
)

// messageReactions groups a message's reactions by emoji, reactors in
// insertion order via the primary key scan.
func (s *Store) messageReactions(ctx context.Context, messageID uint64) ([]models.Reaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT emoji_ref, user_id FROM reactions
		WHERE message_id = $1 ORDER BY emoji_ref, user_id`, int64(messageID))
	if err != nil {
		return nil, s.mapError(err, "messageReactions", "")
	}
	defer rows.Close()

	reactions := []models.Reaction{}
	byRef := map[string]int{}
	for rows.Next() {
		var ref string
		var userID int64
		if err := rows.Scan(&ref, &userID); err != nil {
			return nil, s.mapError(err, "messageReactions", "")
		}
		idx, ok := byRef[ref]
		if !ok {
			emoji, err := models.ReactionEmojiFromRef(ref)
			if err != nil {
				return nil, s.mapError(err, "messageReactions", "")
			}
			idx = len(reactions)
			byRef[ref] = idx
			reactions = append(reactions, models.Reaction{Emoji: emoji, UserIDs: []uint64{}})
		}
		reactions[idx].UserIDs = append(reactions[idx].UserIDs, uint64(userID))
	}
	return reactions, s.mapError(rows.Err(), "messageReactions", "")
}

// AddReaction records a user's reaction. Reacting twice with the same emoji
// is a no-op and reports added = false.
func (s *Store) AddReaction(ctx context.Context, messageID uint64, emoji models.ReactionEmoji, userID uint64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO reactions (message_id, emoji_ref, user_id)
		VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		int64(messageID), emoji.Ref(), int64(userID))
	if err != nil {
		return false, s.mapError(err, "AddReaction", "")
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveReaction removes a user's reaction; removing one that does not exist
// reports removed = false.
func (s *Store) RemoveReaction(ctx context.Context, messageID uint64, emoji models.ReactionEmoji, userID uint64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM reactions WHERE message_id = $1 AND emoji_ref = $2 AND user_id = $3`,
		int64(messageID), emoji.Ref(), int64(userID))
	if err != nil {
		return false, s.mapError(err, "RemoveReaction", "")
	}
	return tag.RowsAffected() > 0, nil
}

// ClearReactions removes every reaction on a message.
func (s *Store) ClearReactions(ctx context.Context, messageID uint64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM reactions WHERE message_id = $1`, int64(messageID))
	return s.mapError(err, "ClearReactions", "")
}
