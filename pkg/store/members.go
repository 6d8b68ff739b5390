package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/eludris/eludris/pkg/models"
)

const memberColumns = `m.user_id, m.sphere_id, m.nickname, m.sphere_avatar,
	m.sphere_banner, m.sphere_bio, m.sphere_status`

// scanMemberWithUser scans a row of memberColumns followed by the joined
// user's columns.
func scanMemberWithUser(row pgx.Row) (models.Member, error) {
	var m models.Member
	var userID, sphereID int64
	var avatar, banner *int64
	var u models.User
	var uid, badges, permissions int64
	var uAvatar, uBanner *int64
	var email string
	var verified bool
	err := row.Scan(
		&userID, &sphereID, &m.Nickname, &avatar, &banner, &m.SphereBio, &m.SphereStatus,
		&uid, &u.Username, &email, &u.PasswordHash, &u.DisplayName, &u.SocialCredit,
		&u.Status.Type, &u.Status.Text, &u.Bio, &uAvatar, &uBanner,
		&badges, &permissions, &verified, &u.IsDeleted,
	)
	if err != nil {
		return models.Member{}, err
	}
	m.SphereID = uint64(sphereID)
	if avatar != nil {
		v := uint64(*avatar)
		m.SphereAvatar = &v
	}
	if banner != nil {
		v := uint64(*banner)
		m.SphereBanner = &v
	}
	u.ID = uint64(uid)
	u.Badges = uint64(badges)
	u.Permissions = uint64(permissions)
	u.Email = &email
	u.Verified = &verified
	if uAvatar != nil {
		v := uint64(*uAvatar)
		u.Avatar = &v
	}
	if uBanner != nil {
		v := uint64(*uBanner)
		u.Banner = &v
	}
	m.User = u
	return m, nil
}

// SphereMembers lists a sphere's members with their users embedded. Members
// whose account has been tombstoned are skipped.
func (s *Store) SphereMembers(ctx context.Context, sphereID uint64) ([]models.Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+memberColumns+`, `+prefixedUserColumns("u")+`
		FROM members m JOIN users u ON u.id = m.user_id
		WHERE m.sphere_id = $1 AND NOT u.is_deleted
		ORDER BY m.user_id`, int64(sphereID))
	if err != nil {
		return nil, s.mapError(err, "SphereMembers", "")
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		m, err := scanMemberWithUser(rows)
		if err != nil {
			return nil, s.mapError(err, "SphereMembers", "")
		}
		members = append(members, m)
	}
	return members, s.mapError(rows.Err(), "SphereMembers", "")
}

// GetMember fetches a sphere member with the user embedded.
func (s *Store) GetMember(ctx context.Context, sphereID, userID uint64) (models.Member, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+memberColumns+`, `+prefixedUserColumns("u")+`
		FROM members m JOIN users u ON u.id = m.user_id
		WHERE m.sphere_id = $1 AND m.user_id = $2 AND NOT u.is_deleted`,
		int64(sphereID), int64(userID))
	m, err := scanMemberWithUser(row)
	if err != nil {
		return models.Member{}, s.mapError(err, "GetMember", "")
	}
	return m, nil
}

// IsMember reports whether the user belongs to the sphere.
func (s *Store) IsMember(ctx context.Context, sphereID, userID uint64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM members WHERE sphere_id = $1 AND user_id = $2)`,
		int64(sphereID), int64(userID)).Scan(&exists)
	if err != nil {
		return false, s.mapError(err, "IsMember", "")
	}
	return exists, nil
}

// JoinSphere adds the user to the sphere. Joining twice is a conflict.
func (s *Store) JoinSphere(ctx context.Context, sphereID, userID uint64) (models.Member, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO members (user_id, sphere_id) VALUES ($1, $2)`,
		int64(userID), int64(sphereID))
	if err != nil {
		return models.Member{}, s.mapError(err, "JoinSphere", "member")
	}
	return s.GetMember(ctx, sphereID, userID)
}

// LeaveSphere removes the user from the sphere.
func (s *Store) LeaveSphere(ctx context.Context, sphereID, userID uint64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM members WHERE user_id = $1 AND sphere_id = $2`,
		int64(userID), int64(sphereID))
	if err != nil {
		return s.mapError(err, "LeaveSphere", "")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound()
	}
	return nil
}

// EditMember applies a three-state member profile edit.
func (s *Store) EditMember(ctx context.Context, sphereID, userID uint64, edit models.MemberEdit) (models.Member, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		apply := func(column string, o models.Omittable[string]) error {
			if !o.IsSet() {
				return nil
			}
			var value *string
			if v, ok := o.Value(); ok {
				value = &v
			}
			tag, err := tx.Exec(ctx, fmt.Sprintf(`
				UPDATE members SET %s = $1 WHERE user_id = $2 AND sphere_id = $3`, column),
				value, int64(userID), int64(sphereID))
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return models.ErrNotFound()
			}
			return nil
		}
		applyID := func(column string, o models.Omittable[uint64]) error {
			if !o.IsSet() {
				return nil
			}
			var value *int64
			if v, ok := o.Value(); ok {
				signed := int64(v)
				value = &signed
			}
			tag, err := tx.Exec(ctx, fmt.Sprintf(`
				UPDATE members SET %s = $1 WHERE user_id = $2 AND sphere_id = $3`, column),
				value, int64(userID), int64(sphereID))
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return models.ErrNotFound()
			}
			return nil
		}

		if err := apply("nickname", edit.Nickname); err != nil {
			return err
		}
		if err := applyID("sphere_avatar", edit.SphereAvatar); err != nil {
			return err
		}
		if err := applyID("sphere_banner", edit.SphereBanner); err != nil {
			return err
		}
		if err := apply("sphere_bio", edit.SphereBio); err != nil {
			return err
		}
		return apply("sphere_status", edit.SphereStatus)
	})
	if err != nil {
		return models.Member{}, s.mapError(err, "EditMember", "")
	}
	return s.GetMember(ctx, sphereID, userID)
}
