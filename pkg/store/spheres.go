package store

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/eludris/eludris/pkg/models"
)

const sphereColumns = `id, owner_id, slug, name, sphere_type, description, icon, banner, badges`

func scanSphere(row pgx.Row) (models.Sphere, error) {
	var sp models.Sphere
	var id, ownerID, badges int64
	var icon, banner *int64
	err := row.Scan(&id, &ownerID, &sp.Slug, &sp.Name, &sp.Type, &sp.Description, &icon, &banner, &badges)
	if err != nil {
		return models.Sphere{}, err
	}
	sp.ID = uint64(id)
	sp.OwnerID = uint64(ownerID)
	sp.Badges = uint64(badges)
	if icon != nil {
		v := uint64(*icon)
		sp.Icon = &v
	}
	if banner != nil {
		v := uint64(*banner)
		sp.Banner = &v
	}
	return sp, nil
}

// CreateSphere inserts a sphere along with its implicit default category
// (same id as the sphere, holding a "general" text channel) and the owner's
// membership.
func (s *Store) CreateSphere(ctx context.Context, ownerID uint64, create models.SphereCreate) (models.Sphere, error) {
	sphereID := s.NewID()
	channelID := s.NewID()

	var icon, banner *int64
	if create.Icon != nil {
		v := int64(*create.Icon)
		icon = &v
	}
	if create.Banner != nil {
		v := int64(*create.Banner)
		banner = &v
	}

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO spheres (id, owner_id, slug, name, sphere_type, description, icon, banner)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			int64(sphereID), int64(ownerID), create.Slug, create.Name,
			string(create.Type), create.Description, icon, banner,
		); err != nil {
			return err
		}
		// The default category shares the sphere's id and sits at position 0.
		if _, err := tx.Exec(ctx, `
			INSERT INTO categories (id, sphere_id, name, position)
			VALUES ($1, $1, 'uncategorised', 0)`, int64(sphereID),
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO channels (id, sphere_id, channel_type, name, category_id, position)
			VALUES ($1, $2, 'TEXT', 'general', $2, 0)`,
			int64(channelID), int64(sphereID),
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO members (user_id, sphere_id) VALUES ($1, $2)`,
			int64(ownerID), int64(sphereID))
		return err
	})
	if err != nil {
		return models.Sphere{}, s.mapError(err, "CreateSphere", "slug")
	}
	return s.GetSphere(ctx, sphereID)
}

// GetSphere fetches a sphere by id with categories, channels and members
// populated.
func (s *Store) GetSphere(ctx context.Context, id uint64) (models.Sphere, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sphereColumns+` FROM spheres WHERE id = $1`, int64(id))
	return s.populateSphere(ctx, row)
}

// GetSphereBySlug fetches a sphere by slug with its contents populated.
func (s *Store) GetSphereBySlug(ctx context.Context, slug string) (models.Sphere, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sphereColumns+` FROM spheres WHERE slug = $1`, slug)
	return s.populateSphere(ctx, row)
}

// ResolveSphere resolves a sphere identifier, numeric id or slug, to the
// bare sphere row.
func (s *Store) ResolveSphere(ctx context.Context, identifier string) (models.Sphere, error) {
	var row pgx.Row
	if id, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		row = s.pool.QueryRow(ctx, `SELECT `+sphereColumns+` FROM spheres WHERE id = $1`, int64(id))
	} else {
		row = s.pool.QueryRow(ctx, `SELECT `+sphereColumns+` FROM spheres WHERE slug = $1`, identifier)
	}
	sp, err := scanSphere(row)
	if err != nil {
		return models.Sphere{}, s.mapError(err, "ResolveSphere", "")
	}
	return sp, nil
}

func (s *Store) populateSphere(ctx context.Context, row pgx.Row) (models.Sphere, error) {
	sp, err := scanSphere(row)
	if err != nil {
		return models.Sphere{}, s.mapError(err, "GetSphere", "")
	}
	categories, err := s.sphereCategories(ctx, sp.ID)
	if err != nil {
		return models.Sphere{}, err
	}
	sp.Categories = categories
	members, err := s.SphereMembers(ctx, sp.ID)
	if err != nil {
		return models.Sphere{}, err
	}
	sp.Members = members
	return sp, nil
}

// EditSphere applies a sphere edit. Type changes must already be validated
// as upgrades by the caller.
func (s *Store) EditSphere(ctx context.Context, id uint64, edit models.SphereEdit) (models.Sphere, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if edit.Name.IsSet() {
			var name *string
			if v, ok := edit.Name.Value(); ok {
				name = &v
			}
			if _, err := tx.Exec(ctx, `UPDATE spheres SET name = $1 WHERE id = $2`, name, int64(id)); err != nil {
				return err
			}
		}
		if edit.Type != nil {
			if _, err := tx.Exec(ctx, `UPDATE spheres SET sphere_type = $1 WHERE id = $2`, string(*edit.Type), int64(id)); err != nil {
				return err
			}
		}
		if edit.Description.IsSet() {
			var description *string
			if v, ok := edit.Description.Value(); ok {
				description = &v
			}
			if _, err := tx.Exec(ctx, `UPDATE spheres SET description = $1 WHERE id = $2`, description, int64(id)); err != nil {
				return err
			}
		}
		if edit.Icon.IsSet() {
			var icon *int64
			if v, ok := edit.Icon.Value(); ok {
				signed := int64(v)
				icon = &signed
			}
			if _, err := tx.Exec(ctx, `UPDATE spheres SET icon = $1 WHERE id = $2`, icon, int64(id)); err != nil {
				return err
			}
		}
		if edit.Banner.IsSet() {
			var banner *int64
			if v, ok := edit.Banner.Value(); ok {
				signed := int64(v)
				banner = &signed
			}
			if _, err := tx.Exec(ctx, `UPDATE spheres SET banner = $1 WHERE id = $2`, banner, int64(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Sphere{}, s.mapError(err, "EditSphere", "")
	}
	return s.GetSphere(ctx, id)
}

// UserSpheres lists the spheres a user belongs to, contents populated, for
// the gateway AUTHENTICATED reply.
func (s *Store) UserSpheres(ctx context.Context, userID uint64) ([]models.Sphere, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sphereColumns+` FROM spheres
		WHERE id IN (SELECT sphere_id FROM members WHERE user_id = $1)
		ORDER BY id`, int64(userID))
	if err != nil {
		return nil, s.mapError(err, "UserSpheres", "")
	}
	defer rows.Close()

	bare := []models.Sphere{}
	for rows.Next() {
		sp, err := scanSphere(rows)
		if err != nil {
			return nil, s.mapError(err, "UserSpheres", "")
		}
		bare = append(bare, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapError(err, "UserSpheres", "")
	}

	spheres := make([]models.Sphere, 0, len(bare))
	for _, sp := range bare {
		full, err := s.populateSphereContents(ctx, sp)
		if err != nil {
			return nil, err
		}
		spheres = append(spheres, full)
	}
	return spheres, nil
}

func (s *Store) populateSphereContents(ctx context.Context, sp models.Sphere) (models.Sphere, error) {
	categories, err := s.sphereCategories(ctx, sp.ID)
	if err != nil {
		return models.Sphere{}, err
	}
	sp.Categories = categories
	members, err := s.SphereMembers(ctx, sp.ID)
	if err != nil {
		return models.Sphere{}, err
	}
	sp.Members = members
	return sp, nil
}
