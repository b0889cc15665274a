package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"seclab/models"
)

// Sessions persists issued sessions. Tokens are server-generated, so these
// statements are always parameterized.
type Sessions struct {
	db *sql.DB
}

func NewSessions(db *sql.DB) *Sessions {
	return &Sessions{db: db}
}

func (s *Sessions) Insert(ctx context.Context, sess models.Session) error {
	var expires sql.NullTime
	if !sess.ExpiresAt.IsZero() {
		expires = sql.NullTime{Time: sess.ExpiresAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (token, username, created_at, expires_at) VALUES (?, ?, ?, ?)",
		sess.Token, sess.Username, sess.CreatedAt.UTC(), expires)
	if isUniqueViolation(err) {
		return ErrDuplicateToken
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Sessions) Get(ctx context.Context, token string) (models.Session, error) {
	var sess models.Session
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx,
		"SELECT token, username, created_at, expires_at FROM sessions WHERE token = ?", token).
		Scan(&sess.Token, &sess.Username, &sess.CreatedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session: %w", err)
	}
	if expires.Valid {
		sess.ExpiresAt = expires.Time
	}
	return sess, nil
}

func (s *Sessions) Delete(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteForUser removes every session of username except the one identified
// by keep.
func (s *Sessions) DeleteForUser(ctx context.Context, username, keep string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE username = ? AND token != ?", username, keep)
	if err != nil {
		return 0, fmt.Errorf("delete sessions for %s: %w", username, err)
	}
	return result.RowsAffected()
}

func (s *Sessions) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= ?", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
