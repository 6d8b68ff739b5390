package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/eludris/eludris/pkg/models"
)

const channelColumns = `id, sphere_id, channel_type, name, topic, category_id, position, is_deleted`

func scanChannel(row pgx.Row) (models.SphereChannel, error) {
	var ch models.SphereChannel
	var id, sphereID, categoryID int64
	err := row.Scan(&id, &sphereID, &ch.Type, &ch.Name, &ch.Topic, &categoryID, &ch.Position, &ch.IsDeleted)
	if err != nil {
		return models.SphereChannel{}, err
	}
	ch.ID = uint64(id)
	ch.SphereID = uint64(sphereID)
	ch.CategoryID = uint64(categoryID)
	return ch, nil
}

// categoryChannels returns the category's live channels in position order.
func (s *Store) categoryChannels(ctx context.Context, categoryID uint64) ([]models.SphereChannel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+channelColumns+` FROM channels
		WHERE category_id = $1 AND NOT is_deleted ORDER BY position`, int64(categoryID))
	if err != nil {
		return nil, s.mapError(err, "categoryChannels", "")
	}
	defer rows.Close()

	channels := []models.SphereChannel{}
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, s.mapError(err, "categoryChannels", "")
		}
		channels = append(channels, ch)
	}
	return channels, s.mapError(rows.Err(), "categoryChannels", "")
}

// GetChannel fetches a live channel by id.
func (s *Store) GetChannel(ctx context.Context, channelID uint64) (models.SphereChannel, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = $1 AND NOT is_deleted`, int64(channelID))
	ch, err := scanChannel(row)
	if err != nil {
		return models.SphereChannel{}, s.mapError(err, "GetChannel", "")
	}
	return ch, nil
}

// GetSphereChannel fetches a live channel scoped to a sphere.
func (s *Store) GetSphereChannel(ctx context.Context, sphereID, channelID uint64) (models.SphereChannel, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+channelColumns+` FROM channels
		WHERE id = $1 AND sphere_id = $2 AND NOT is_deleted`,
		int64(channelID), int64(sphereID))
	ch, err := scanChannel(row)
	if err != nil {
		return models.SphereChannel{}, s.mapError(err, "GetSphereChannel", "")
	}
	return ch, nil
}

// CreateChannel appends a channel at the end of its category's order. A nil
// category in the payload targets the sphere's default category.
func (s *Store) CreateChannel(ctx context.Context, sphereID uint64, create models.SphereChannelCreate) (models.SphereChannel, error) {
	categoryID := sphereID
	if create.CategoryID != nil {
		categoryID = *create.CategoryID
	}

	id := s.NewID()
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM categories
			WHERE id = $1 AND sphere_id = $2 AND NOT is_deleted)`,
			int64(categoryID), int64(sphereID)).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return models.ErrNotFound()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO channels (id, sphere_id, channel_type, name, topic, category_id, position)
			SELECT $1, $2, $3, $4, $5, $6, COUNT(*) FROM channels
			WHERE category_id = $6 AND NOT is_deleted`,
			int64(id), int64(sphereID), string(create.Type), create.Name, create.Topic, int64(categoryID))
		return err
	})
	if err != nil {
		return models.SphereChannel{}, s.mapError(err, "CreateChannel", "")
	}
	return s.GetChannel(ctx, id)
}

// EditChannel applies name/topic changes and position or category moves.
//
// A move within the channel's category clamps the target into [0, count-1]
// and shifts the interval between the old and new slots. A move to another
// category closes the gap in the source (positions above the old slot come
// down by one) and opens one in the destination (positions at or above the
// target go up by one), with the target clamped into [0, dest count].
func (s *Store) EditChannel(ctx context.Context, sphereID, channelID uint64, edit models.SphereChannelEdit) (models.SphereChannel, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		ch, err := scanChannel(tx.QueryRow(ctx, `
			SELECT `+channelColumns+` FROM channels
			WHERE id = $1 AND sphere_id = $2 AND NOT is_deleted`,
			int64(channelID), int64(sphereID)))
		if err != nil {
			return err
		}

		if edit.Name != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE channels SET name = $1 WHERE id = $2`, *edit.Name, int64(channelID)); err != nil {
				return err
			}
		}
		if edit.Topic.IsSet() {
			if ch.Type != models.ChannelTypeText {
				return models.ErrValidation("topic", "Only text channels may have a topic")
			}
			var topic *string
			if v, ok := edit.Topic.Value(); ok {
				topic = &v
			}
			if _, err := tx.Exec(ctx,
				`UPDATE channels SET topic = $1 WHERE id = $2`, topic, int64(channelID)); err != nil {
				return err
			}
		}

		if edit.CategoryID != nil && *edit.CategoryID != ch.CategoryID {
			target := uint32(0)
			if edit.Position != nil {
				target = *edit.Position
			}
			return s.moveChannelAcross(ctx, tx, sphereID, ch, *edit.CategoryID, target)
		}
		if edit.Position != nil {
			return s.moveChannelWithin(ctx, tx, ch, *edit.Position)
		}
		return nil
	})
	if err != nil {
		return models.SphereChannel{}, s.mapError(err, "EditChannel", "")
	}
	return s.GetChannel(ctx, channelID)
}

func (s *Store) moveChannelWithin(ctx context.Context, tx pgx.Tx, ch models.SphereChannel, target uint32) error {
	var count uint32
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM channels WHERE category_id = $1 AND NOT is_deleted`,
		int64(ch.CategoryID)).Scan(&count); err != nil {
		return err
	}
	if target >= count {
		target = count - 1
	}
	if target == ch.Position {
		return nil
	}

	lo, hi, shift := ch.Position, target, -1
	if target < ch.Position {
		lo, hi, shift = target, ch.Position, 1
	}
	if _, err := tx.Exec(ctx, `
		UPDATE channels SET position = position + $1
		WHERE category_id = $2 AND NOT is_deleted AND id <> $3
		  AND position BETWEEN $4 AND $5`,
		shift, int64(ch.CategoryID), int64(ch.ID), lo, hi); err != nil {
		return err
	}
	_, err := tx.Exec(ctx,
		`UPDATE channels SET position = $1 WHERE id = $2`, target, int64(ch.ID))
	return err
}

func (s *Store) moveChannelAcross(ctx context.Context, tx pgx.Tx, sphereID uint64, ch models.SphereChannel, destCategory uint64, target uint32) error {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM categories
		WHERE id = $1 AND sphere_id = $2 AND NOT is_deleted)`,
		int64(destCategory), int64(sphereID)).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrNotFound()
	}

	var destCount uint32
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM channels WHERE category_id = $1 AND NOT is_deleted`,
		int64(destCategory)).Scan(&destCount); err != nil {
		return err
	}
	if target > destCount {
		target = destCount
	}

	if _, err := tx.Exec(ctx, `
		UPDATE channels SET position = position - 1
		WHERE category_id = $1 AND NOT is_deleted AND position > $2`,
		int64(ch.CategoryID), ch.Position); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE channels SET position = position + 1
		WHERE category_id = $1 AND NOT is_deleted AND position >= $2`,
		int64(destCategory), target); err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE channels SET category_id = $1, position = $2 WHERE id = $3`,
		int64(destCategory), target, int64(ch.ID))
	return err
}

// DeleteChannel tombstones a channel and closes the position gap in its
// category. Messages keep referring to the tombstoned channel.
func (s *Store) DeleteChannel(ctx context.Context, sphereID, channelID uint64) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var categoryID int64
		var position uint32
		err := tx.QueryRow(ctx, `
			SELECT category_id, position FROM channels
			WHERE id = $1 AND sphere_id = $2 AND NOT is_deleted`,
			int64(channelID), int64(sphereID)).Scan(&categoryID, &position)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE channels SET is_deleted = TRUE, position = 0 WHERE id = $1`,
			int64(channelID)); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE channels SET position = position - 1
			WHERE category_id = $1 AND NOT is_deleted AND position > $2`,
			categoryID, position)
		return err
	})
	return s.mapError(err, "DeleteChannel", "")
}
