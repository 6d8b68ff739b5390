package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/eludris/eludris/pkg/models"
)

const emojiColumns = `id, sphere_id, uploader_id, file_id, name, is_deleted`

func scanEmoji(row pgx.Row) (models.Emoji, error) {
	var e models.Emoji
	var id, sphereID, uploaderID, fileID int64
	if err := row.Scan(&id, &sphereID, &uploaderID, &fileID, &e.Name, &e.IsDeleted); err != nil {
		return models.Emoji{}, err
	}
	e.ID = uint64(id)
	e.SphereID = uint64(sphereID)
	e.UploaderID = uint64(uploaderID)
	e.FileID = uint64(fileID)
	return e, nil
}

// CreateEmoji registers a custom emoji for a sphere.
func (s *Store) CreateEmoji(ctx context.Context, sphereID, uploaderID uint64, create models.EmojiCreate) (models.Emoji, error) {
	id := s.NewID()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO emojis (id, sphere_id, uploader_id, file_id, name)
		VALUES ($1, $2, $3, $4, $5)`,
		int64(id), int64(sphereID), int64(uploaderID), int64(create.FileID), create.Name)
	if err != nil {
		return models.Emoji{}, s.mapError(err, "CreateEmoji", "")
	}
	return s.GetEmoji(ctx, id)
}

// GetEmoji fetches a live emoji by id.
func (s *Store) GetEmoji(ctx context.Context, id uint64) (models.Emoji, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+emojiColumns+` FROM emojis WHERE id = $1 AND NOT is_deleted`, int64(id))
	e, err := scanEmoji(row)
	if err != nil {
		return models.Emoji{}, s.mapError(err, "GetEmoji", "")
	}
	return e, nil
}

// SphereEmojis lists a sphere's live emojis.
func (s *Store) SphereEmojis(ctx context.Context, sphereID uint64) ([]models.Emoji, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+emojiColumns+` FROM emojis
		WHERE sphere_id = $1 AND NOT is_deleted ORDER BY id`, int64(sphereID))
	if err != nil {
		return nil, s.mapError(err, "SphereEmojis", "")
	}
	defer rows.Close()

	emojis := []models.Emoji{}
	for rows.Next() {
		e, err := scanEmoji(rows)
		if err != nil {
			return nil, s.mapError(err, "SphereEmojis", "")
		}
		emojis = append(emojis, e)
	}
	return emojis, s.mapError(rows.Err(), "SphereEmojis", "")
}

// EditEmoji renames a live emoji.
func (s *Store) EditEmoji(ctx context.Context, id uint64, edit models.EmojiEdit) (models.Emoji, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE emojis SET name = $1 WHERE id = $2 AND NOT is_deleted`, edit.Name, int64(id))
	if err != nil {
		return models.Emoji{}, s.mapError(err, "EditEmoji", "")
	}
	if tag.RowsAffected() == 0 {
		return models.Emoji{}, models.ErrNotFound()
	}
	return s.GetEmoji(ctx, id)
}

// DeleteEmoji tombstones an emoji. Existing reactions keep their reference.
func (s *Store) DeleteEmoji(ctx context.Context, id uint64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE emojis SET is_deleted = TRUE WHERE id = $1 AND NOT is_deleted`, int64(id))
	if err != nil {
		return s.mapError(err, "DeleteEmoji", "")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound()
	}
	return nil
}
