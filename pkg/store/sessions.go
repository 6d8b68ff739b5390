package store

import (
	"context"

	"github.com/eludris/eludris/pkg/models"
)

// CreateSession persists a new session for the user.
func (s *Store) CreateSession(ctx context.Context, userID uint64, create models.SessionCreate, ip string) (models.Session, error) {
	session := models.Session{
		ID:       s.NewID(),
		UserID:   userID,
		Platform: create.Platform,
		Client:   create.Client,
		IP:       ip,
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, platform, client, ip)
		VALUES ($1, $2, $3, $4, $5)`,
		int64(session.ID), int64(session.UserID), session.Platform, session.Client, session.IP,
	)
	if err != nil {
		return models.Session{}, s.mapError(err, "CreateSession", "")
	}
	return session, nil
}

// SessionExists reports whether the (user, session) pair is live. Token
// verification consults this, so a logout invalidates outstanding tokens.
func (s *Store) SessionExists(ctx context.Context, userID, sessionID uint64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1 AND user_id = $2)`,
		int64(sessionID), int64(userID),
	).Scan(&exists)
	if err != nil {
		return false, s.mapError(err, "SessionExists", "")
	}
	return exists, nil
}

// GetSessions lists the user's sessions.
func (s *Store) GetSessions(ctx context.Context, userID uint64) ([]models.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, platform, client, ip FROM sessions
		WHERE user_id = $1 ORDER BY id`, int64(userID))
	if err != nil {
		return nil, s.mapError(err, "GetSessions", "")
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		var session models.Session
		var id, uid int64
		if err := rows.Scan(&id, &uid, &session.Platform, &session.Client, &session.IP); err != nil {
			return nil, s.mapError(err, "GetSessions", "")
		}
		session.ID = uint64(id)
		session.UserID = uint64(uid)
		sessions = append(sessions, session)
	}
	return sessions, s.mapError(rows.Err(), "GetSessions", "")
}

// DeleteSession removes one of the user's sessions.
func (s *Store) DeleteSession(ctx context.Context, userID, sessionID uint64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sessions WHERE id = $1 AND user_id = $2`, int64(sessionID), int64(userID))
	if err != nil {
		return s.mapError(err, "DeleteSession", "")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound()
	}
	return nil
}
