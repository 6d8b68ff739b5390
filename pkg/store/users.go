package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/eludris/eludris/pkg/models"
)

const userColumns = `id, username, email, password_hash, display_name, social_credit,
	status_type, status_text, bio, avatar, banner, badges, permissions, verified, is_deleted`

// prefixedUserColumns qualifies userColumns with a table alias for joins.
func prefixedUserColumns(alias string) string {
	parts := strings.Split(userColumns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	var id, badges, permissions int64
	var avatar, banner *int64
	var email string
	var verified bool
	err := row.Scan(
		&id, &u.Username, &email, &u.PasswordHash, &u.DisplayName, &u.SocialCredit,
		&u.Status.Type, &u.Status.Text, &u.Bio, &avatar, &banner,
		&badges, &permissions, &verified, &u.IsDeleted,
	)
	if err != nil {
		return models.User{}, err
	}
	u.ID = uint64(id)
	u.Badges = uint64(badges)
	u.Permissions = uint64(permissions)
	u.Email = &email
	u.Verified = &verified
	if avatar != nil {
		v := uint64(*avatar)
		u.Avatar = &v
	}
	if banner != nil {
		v := uint64(*banner)
		u.Banner = &v
	}
	return u, nil
}

// userConflictItem maps a unique violation to the clashing field name.
func userConflictItem(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "users_email_key" {
			return "email"
		}
		return "username"
	}
	return "username"
}

// CreateUser inserts a new unverified account. The password must already be
// hashed.
func (s *Store) CreateUser(ctx context.Context, create models.UserCreate, passwordHash string) (models.User, error) {
	id := s.NewID()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)`,
		int64(id), create.Username, create.Email, passwordHash,
	)
	if err != nil {
		return models.User{}, s.mapError(err, "CreateUser", userConflictItem(err))
	}
	return s.GetUser(ctx, id)
}

// GetUser fetches a live user by id.
func (s *Store) GetUser(ctx context.Context, id uint64) (models.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND NOT is_deleted`, int64(id))
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, s.mapError(err, "GetUser", "")
	}
	return u, nil
}

// GetUserByUsername fetches a live user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND NOT is_deleted`, username)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, s.mapError(err, "GetUserByUsername", "")
	}
	return u, nil
}

// GetUserByIdentifier fetches a live user by username or email. Used by
// session creation.
func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE (username = $1 OR email = $1) AND NOT is_deleted`, identifier)
	u, err := scanUser(row)
	if err != nil {
		return models.User{}, s.mapError(err, "GetUserByIdentifier", "")
	}
	return u, nil
}

// EditUser applies a username/email/password change. A changed email resets
// the verified flag. newHash is empty when the password is unchanged.
func (s *Store) EditUser(ctx context.Context, id uint64, edit models.UserEdit, newHash string) (models.User, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if edit.Username != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET username = $1 WHERE id = $2`, *edit.Username, int64(id)); err != nil {
				return err
			}
		}
		if edit.Email != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET email = $1, verified = FALSE WHERE id = $2`, *edit.Email, int64(id)); err != nil {
				return err
			}
		}
		if newHash != "" {
			if _, err := tx.Exec(ctx,
				`UPDATE users SET password_hash = $1 WHERE id = $2`, newHash, int64(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.User{}, s.mapError(err, "EditUser", userConflictItem(err))
	}
	return s.GetUser(ctx, id)
}

// EditProfile applies a three-state profile edit and returns the updated
// user.
func (s *Store) EditProfile(ctx context.Context, id uint64, edit models.ProfileEdit) (models.User, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		apply := func(column string, o models.Omittable[string]) error {
			if !o.IsSet() {
				return nil
			}
			var value *string
			if v, ok := o.Value(); ok {
				value = &v
			}
			_, err := tx.Exec(ctx,
				fmt.Sprintf(`UPDATE users SET %s = $1 WHERE id = $2`, column), value, int64(id))
			return err
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
			_, err := tx.Exec(ctx,
				fmt.Sprintf(`UPDATE users SET %s = $1 WHERE id = $2`, column), value, int64(id))
			return err
		}

		if err := apply("display_name", edit.DisplayName); err != nil {
			return err
		}
		if err := apply("bio", edit.Bio); err != nil {
			return err
		}
		if err := apply("status_text", edit.Status); err != nil {
			return err
		}
		if edit.StatusType.IsSet() {
			// A status type cannot be cleared, only replaced.
			if v, ok := edit.StatusType.Value(); ok {
				if _, err := tx.Exec(ctx,
					`UPDATE users SET status_type = $1 WHERE id = $2`, string(v), int64(id)); err != nil {
					return err
				}
			}
		}
		if err := applyID("avatar", edit.Avatar); err != nil {
			return err
		}
		return applyID("banner", edit.Banner)
	})
	if err != nil {
		return models.User{}, s.mapError(err, "EditProfile", "")
	}
	return s.GetUser(ctx, id)
}

// VerifyUser marks the user's email as verified.
func (s *Store) VerifyUser(ctx context.Context, id uint64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET verified = TRUE WHERE id = $1 AND NOT is_deleted`, int64(id))
	if err != nil {
		return s.mapError(err, "VerifyUser", "")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound()
	}
	return nil
}

// SetUserPassword replaces the stored hash. Used by the reset flow.
func (s *Store) SetUserPassword(ctx context.Context, id uint64, hash string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $1 WHERE id = $2 AND NOT is_deleted`, hash, int64(id))
	return s.mapError(err, "SetUserPassword", "")
}

// SoftDeleteUser tombstones the account and drops its sessions. The account
// disappears from every read path; the sweeper hard-deletes it later.
func (s *Store) SoftDeleteUser(ctx context.Context, id uint64) error {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET is_deleted = TRUE WHERE id = $1 AND NOT is_deleted`, int64(id))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound()
		}
		_, err = tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, int64(id))
		return err
	})
	return s.mapError(err, "SoftDeleteUser", "")
}

// SweepUsers hard-deletes unverified accounts older than maxUnverifiedAge
// and previously tombstoned accounts. Message authorship survives via the
// ON DELETE SET NULL foreign key.
func (s *Store) SweepUsers(ctx context.Context, maxUnverifiedAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxUnverifiedAge)
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM users
		WHERE is_deleted OR (NOT verified AND created_at < $1)`, cutoff)
	if err != nil {
		return 0, s.mapError(err, "SweepUsers", "")
	}
	return tag.RowsAffected(), nil
}
