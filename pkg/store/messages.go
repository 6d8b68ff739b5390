package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/eludris/eludris/pkg/models"
)

// CreateMessage inserts a message with its attachments and embeds. Attachment
// files must already have been checked against the attachments bucket and the
// reference resolved by the caller.
func (s *Store) CreateMessage(ctx context.Context, channelID uint64, authorID uint64, create models.MessageCreate) (models.Message, error) {
	id := s.NewID()
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var ref *int64
		if create.Reference != nil {
			v := int64(*create.Reference)
			ref = &v
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO messages (id, channel_id, author_id, content, reference)
			VALUES ($1, $2, $3, $4, $5)`,
			int64(id), int64(channelID), int64(authorID), create.Content, ref,
		); err != nil {
			return err
		}
		if err := insertAttachments(ctx, tx, id, create.Attachments); err != nil {
			return err
		}
		return insertEmbeds(ctx, tx, id, create.Embeds)
	})
	if err != nil {
		return models.Message{}, s.mapError(err, "CreateMessage", "")
	}
	return s.GetMessage(ctx, channelID, id)
}

func insertAttachments(ctx context.Context, tx pgx.Tx, messageID uint64, attachments []models.Attachment) error {
	for i, a := range attachments {
		if _, err := tx.Exec(ctx, `
			INSERT INTO attachments (message_id, position, file_id, description, spoiler)
			VALUES ($1, $2, $3, $4, $5)`,
			int64(messageID), i, int64(a.FileID), a.Description, a.Spoiler,
		); err != nil {
			return err
		}
	}
	return nil
}

func insertEmbeds(ctx context.Context, tx pgx.Tx, messageID uint64, embeds []models.Embed) error {
	for i, e := range embeds {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO message_embeds (message_id, position, data)
			VALUES ($1, $2, $3)`, int64(messageID), i, data,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetMessage fetches a message scoped to a channel, with attachments, embeds
// and reactions populated.
func (s *Store) GetMessage(ctx context.Context, channelID, messageID uint64) (models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, channel_id, author_id, content, reference FROM messages
		WHERE id = $1 AND channel_id = $2`, int64(messageID), int64(channelID))
	msg, err := scanMessage(row)
	if err != nil {
		return models.Message{}, s.mapError(err, "GetMessage", "")
	}
	if err := s.populateMessage(ctx, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func scanMessage(row pgx.Row) (models.Message, error) {
	var msg models.Message
	var id, channelID int64
	var authorID, reference *int64
	if err := row.Scan(&id, &channelID, &authorID, &msg.Content, &reference); err != nil {
		return models.Message{}, err
	}
	msg.ID = uint64(id)
	msg.ChannelID = uint64(channelID)
	if authorID != nil {
		v := uint64(*authorID)
		msg.AuthorID = &v
	}
	if reference != nil {
		v := uint64(*reference)
		msg.Reference = &v
	}
	return msg, nil
}

func (s *Store) populateMessage(ctx context.Context, msg *models.Message) error {
	attachments, err := s.messageAttachments(ctx, msg.ID)
	if err != nil {
		return err
	}
	msg.Attachments = attachments
	embeds, err := s.messageEmbeds(ctx, msg.ID)
	if err != nil {
		return err
	}
	msg.Embeds = embeds
	reactions, err := s.messageReactions(ctx, msg.ID)
	if err != nil {
		return err
	}
	msg.Reactions = reactions
	return nil
}

func (s *Store) messageAttachments(ctx context.Context, messageID uint64) ([]models.Attachment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT file_id, description, spoiler FROM attachments
		WHERE message_id = $1 ORDER BY position`, int64(messageID))
	if err != nil {
		return nil, s.mapError(err, "messageAttachments", "")
	}
	defer rows.Close()

	attachments := []models.Attachment{}
	for rows.Next() {
		var a models.Attachment
		var fileID int64
		if err := rows.Scan(&fileID, &a.Description, &a.Spoiler); err != nil {
			return nil, s.mapError(err, "messageAttachments", "")
		}
		a.FileID = uint64(fileID)
		attachments = append(attachments, a)
	}
	return attachments, s.mapError(rows.Err(), "messageAttachments", "")
}

func (s *Store) messageEmbeds(ctx context.Context, messageID uint64) ([]models.Embed, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data FROM message_embeds
		WHERE message_id = $1 ORDER BY position`, int64(messageID))
	if err != nil {
		return nil, s.mapError(err, "messageEmbeds", "")
	}
	defer rows.Close()

	embeds := []models.Embed{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, s.mapError(err, "messageEmbeds", "")
		}
		var e models.Embed
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, s.mapError(err, "messageEmbeds", "")
		}
		embeds = append(embeds, e)
	}
	return embeds, s.mapError(rows.Err(), "messageEmbeds", "")
}

// GetMessages pages a channel's history. before is exclusive; zero means from
// the newest. Messages come back oldest first within the page.
func (s *Store) GetMessages(ctx context.Context, channelID uint64, before uint64, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var rows pgx.Rows
	var err error
	if before > 0 {
		rows, err = s.pool.Query(ctx, `
			SELECT id, channel_id, author_id, content, reference FROM messages
			WHERE channel_id = $1 AND id < $2 ORDER BY id DESC LIMIT $3`,
			int64(channelID), int64(before), limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, channel_id, author_id, content, reference FROM messages
			WHERE channel_id = $1 ORDER BY id DESC LIMIT $2`,
			int64(channelID), limit)
	}
	if err != nil {
		return nil, s.mapError(err, "GetMessages", "")
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, s.mapError(err, "GetMessages", "")
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapError(err, "GetMessages", "")
	}

	// Reverse to chronological order and populate outside the row iteration.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	for i := range messages {
		if err := s.populateMessage(ctx, &messages[i]); err != nil {
			return nil, err
		}
	}
	return messages, nil
}

// MessageExists reports whether a message exists in the channel. Reference
// resolution uses this.
func (s *Store) MessageExists(ctx context.Context, channelID, messageID uint64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1 AND channel_id = $2)`,
		int64(messageID), int64(channelID)).Scan(&exists)
	if err != nil {
		return false, s.mapError(err, "MessageExists", "")
	}
	return exists, nil
}

// UpdateMessage persists an already-merged message: content plus full
// replacement of the attachment and embed sets.
func (s *Store) UpdateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE messages SET content = $1 WHERE id = $2`, msg.Content, int64(msg.ID)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM attachments WHERE message_id = $1`, int64(msg.ID)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM message_embeds WHERE message_id = $1`, int64(msg.ID)); err != nil {
			return err
		}
		if err := insertAttachments(ctx, tx, msg.ID, msg.Attachments); err != nil {
			return err
		}
		return insertEmbeds(ctx, tx, msg.ID, msg.Embeds)
	})
	if err != nil {
		return models.Message{}, s.mapError(err, "UpdateMessage", "")
	}
	return s.GetMessage(ctx, msg.ChannelID, msg.ID)
}

// AppendMessageEmbeds adds crawled embeds to a message, keeping the combined
// set within the per-message bound. Returns the full post-append embed list.
func (s *Store) AppendMessageEmbeds(ctx context.Context, messageID uint64, embeds []models.Embed) ([]models.Embed, error) {
	var combined []models.Embed
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT data FROM message_embeds
			WHERE message_id = $1 ORDER BY position`, int64(messageID))
		if err != nil {
			return err
		}
		existing := []models.Embed{}
		for rows.Next() {
			var data []byte
			if err := rows.Scan(&data); err != nil {
				rows.Close()
				return err
			}
			var e models.Embed
			if err := json.Unmarshal(data, &e); err != nil {
				rows.Close()
				return err
			}
			existing = append(existing, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		offset := len(existing)
		for i, e := range embeds {
			if offset+i >= models.MaxMessageEmbeds {
				break
			}
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO message_embeds (message_id, position, data)
				VALUES ($1, $2, $3)`, int64(messageID), offset+i, data,
			); err != nil {
				return err
			}
			existing = append(existing, e)
		}
		combined = existing
		return nil
	})
	if err != nil {
		return nil, s.mapError(err, "AppendMessageEmbeds", "")
	}
	return combined, nil
}

// DeleteMessage removes a message and, via cascades, its attachments, embeds
// and reactions.
func (s *Store) DeleteMessage(ctx context.Context, channelID, messageID uint64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM messages WHERE id = $1 AND channel_id = $2`,
		int64(messageID), int64(channelID))
	if err != nil {
		return s.mapError(err, "DeleteMessage", "")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound()
	}
	return nil
}
