package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/eludris/eludris/pkg/models"
)

func scanCategory(row pgx.Row) (models.Category, error) {
	var c models.Category
	var id, sphereID int64
	if err := row.Scan(&id, &sphereID, &c.Name, &c.Position, &c.IsDeleted); err != nil {
		return models.Category{}, err
	}
	c.ID = uint64(id)
	c.SphereID = uint64(sphereID)
	return c, nil
}

// sphereCategories returns the sphere's live categories in position order,
// channels populated.
func (s *Store) sphereCategories(ctx context.Context, sphereID uint64) ([]models.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sphere_id, name, position, is_deleted FROM categories
		WHERE sphere_id = $1 AND NOT is_deleted ORDER BY position`, int64(sphereID))
	if err != nil {
		return nil, s.mapError(err, "sphereCategories", "")
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, s.mapError(err, "sphereCategories", "")
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapError(err, "sphereCategories", "")
	}

	for i := range categories {
		channels, err := s.categoryChannels(ctx, categories[i].ID)
		if err != nil {
			return nil, err
		}
		categories[i].Channels = channels
	}
	return categories, nil
}

// GetCategory fetches a live category in the given sphere.
func (s *Store) GetCategory(ctx context.Context, sphereID, categoryID uint64) (models.Category, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, sphere_id, name, position, is_deleted FROM categories
		WHERE id = $1 AND sphere_id = $2 AND NOT is_deleted`,
		int64(categoryID), int64(sphereID))
	c, err := scanCategory(row)
	if err != nil {
		return models.Category{}, s.mapError(err, "GetCategory", "")
	}
	channels, err := s.categoryChannels(ctx, c.ID)
	if err != nil {
		return models.Category{}, err
	}
	c.Channels = channels
	return c, nil
}

// CreateCategory appends a category at the end of the sphere's order.
func (s *Store) CreateCategory(ctx context.Context, sphereID uint64, create models.CategoryCreate) (models.Category, error) {
	id := s.NewID()
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO categories (id, sphere_id, name, position)
			SELECT $1, $2, $3, COUNT(*) FROM categories
			WHERE sphere_id = $2 AND NOT is_deleted`,
			int64(id), int64(sphereID), create.Name)
		return err
	})
	if err != nil {
		return models.Category{}, s.mapError(err, "CreateCategory", "")
	}
	return s.GetCategory(ctx, sphereID, id)
}

// EditCategory renames and/or repositions a category. The default category
// (id == sphere id) is rejected by the handler before this is called.
//
// Repositioning clamps the target into [0, count-1], then shifts every live
// category whose position lies in the closed interval between the old and
// new positions by one towards the vacated slot, all in one transaction.
func (s *Store) EditCategory(ctx context.Context, sphereID, categoryID uint64, edit models.CategoryEdit) (models.Category, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if edit.Name != nil {
			tag, err := tx.Exec(ctx, `
				UPDATE categories SET name = $1
				WHERE id = $2 AND sphere_id = $3 AND NOT is_deleted`,
				*edit.Name, int64(categoryID), int64(sphereID))
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return models.ErrNotFound()
			}
		}
		if edit.Position != nil {
			return s.moveCategory(ctx, tx, sphereID, categoryID, *edit.Position)
		}
		return nil
	})
	if err != nil {
		return models.Category{}, s.mapError(err, "EditCategory", "")
	}
	return s.GetCategory(ctx, sphereID, categoryID)
}

func (s *Store) moveCategory(ctx context.Context, tx pgx.Tx, sphereID, categoryID uint64, target uint32) error {
	var current uint32
	err := tx.QueryRow(ctx, `
		SELECT position FROM categories
		WHERE id = $1 AND sphere_id = $2 AND NOT is_deleted`,
		int64(categoryID), int64(sphereID)).Scan(&current)
	if err != nil {
		return err
	}

	var count uint32
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM categories WHERE sphere_id = $1 AND NOT is_deleted`,
		int64(sphereID)).Scan(&count); err != nil {
		return err
	}
	if target >= count {
		target = count - 1
	}
	if target == current {
		return nil
	}

	lo, hi, shift := current, target, -1
	if target < current {
		lo, hi, shift = target, current, 1
	}
	if _, err := tx.Exec(ctx, `
		UPDATE categories SET position = position + $1
		WHERE sphere_id = $2 AND NOT is_deleted AND id <> $3
		  AND position BETWEEN $4 AND $5`,
		shift, int64(sphereID), int64(categoryID), lo, hi); err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE categories SET position = $1 WHERE id = $2`, target, int64(categoryID))
	return err
}

// DeleteCategory tombstones a category, closes the position gap and moves
// its live channels to the end of the default category.
func (s *Store) DeleteCategory(ctx context.Context, sphereID, categoryID uint64) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var position uint32
		err := tx.QueryRow(ctx, `
			SELECT position FROM categories
			WHERE id = $1 AND sphere_id = $2 AND NOT is_deleted`,
			int64(categoryID), int64(sphereID)).Scan(&position)
		if err != nil {
			return err
		}

		// Orphaned channels land at the end of the default category.
		if _, err := tx.Exec(ctx, `
			UPDATE channels SET category_id = $1,
			position = (SELECT COUNT(*) FROM channels WHERE category_id = $1 AND NOT is_deleted)
				+ (SELECT COUNT(*) FROM channels c2
				   WHERE c2.category_id = $2 AND NOT c2.is_deleted AND c2.position < channels.position)
			WHERE category_id = $2 AND NOT is_deleted`,
			int64(sphereID), int64(categoryID)); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE categories SET is_deleted = TRUE, position = 0 WHERE id = $1`,
			int64(categoryID)); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE categories SET position = position - 1
			WHERE sphere_id = $1 AND NOT is_deleted AND position > $2`,
			int64(sphereID), position)
		return err
	})
	return s.mapError(err, "DeleteCategory", "")
}
