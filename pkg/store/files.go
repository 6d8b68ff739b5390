package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/eludris/eludris/pkg/models"
)

const fileColumns = `id, file_id, name, content_type, hash, bucket, width, height`

func scanFile(row pgx.Row) (models.File, error) {
	var f models.File
	var id, fileID int64
	if err := row.Scan(&id, &fileID, &f.Name, &f.ContentType, &f.Hash, &f.Bucket, &f.Width, &f.Height); err != nil {
		return models.File{}, err
	}
	f.ID = uint64(id)
	f.FileID = uint64(fileID)
	return f, nil
}

// InsertFile records an upload. The caller assigns both ids so deduplicated
// uploads can point their FileID at an earlier blob; only one canonical row
// (id = file_id) may exist per (hash, bucket).
func (s *Store) InsertFile(ctx context.Context, f models.File) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO files (id, file_id, name, content_type, hash, bucket, width, height)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		int64(f.ID), int64(f.FileID), f.Name, f.ContentType, f.Hash, f.Bucket, f.Width, f.Height)
	return s.mapError(err, "InsertFile", "hash")
}

// GetFile fetches a file record by id within a bucket.
func (s *Store) GetFile(ctx context.Context, bucket string, id uint64) (models.File, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1 AND bucket = $2`, int64(id), bucket)
	f, err := scanFile(row)
	if err != nil {
		return models.File{}, s.mapError(err, "GetFile", "")
	}
	return f, nil
}

// FindFileByHash returns the earliest record with the given content hash in a
// bucket, for upload deduplication.
func (s *Store) FindFileByHash(ctx context.Context, bucket, hash string) (models.File, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+fileColumns+` FROM files
		WHERE hash = $1 AND bucket = $2 ORDER BY id LIMIT 1`, hash, bucket)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.File{}, false, nil
	}
	if err != nil {
		return models.File{}, false, s.mapError(err, "FindFileByHash", "")
	}
	return f, true, nil
}
