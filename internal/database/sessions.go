package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sport-activities/internal/metrics"
)

// Session is a persisted Garmin Connect login
type Session struct {
	Username     string
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GetSession returns the cached session for username, or nil if there is none
func (db *DB) GetSession(username string) (*Session, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpGetSession))
	defer timer.ObserveDuration()

	var s Session
	var expiresAt, createdAt, updatedAt int64
	err := db.conn.QueryRow(`
		SELECT username, session_id, access_token, refresh_token,
		       expires_at, created_at, updated_at
		FROM sessions WHERE username = ?
	`, username).Scan(
		&s.Username, &s.SessionID, &s.AccessToken, &s.RefreshToken,
		&expiresAt, &createdAt, &updatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpGetSession).Inc()
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &s, nil
}

// UpsertSession inserts or replaces the session for s.Username.
// CreatedAt is preserved across updates.
func (db *DB) UpsertSession(s *Session) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpUpsertSession))
	defer timer.ObserveDuration()

	if s.Username == "" {
		return fmt.Errorf("failed to upsert session: username is required")
	}

	now := time.Now().UTC().Truncate(time.Second)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err := db.conn.Exec(`
		INSERT INTO sessions (
			username, session_id, access_token, refresh_token,
			expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			session_id = excluded.session_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, s.Username, s.SessionID, s.AccessToken, s.RefreshToken,
		s.ExpiresAt.Unix(), s.CreatedAt.Unix(), s.UpdatedAt.Unix())

	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpUpsertSession).Inc()
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// DeleteSession removes the cached session for username. Deleting a missing
// session is not an error.
func (db *DB) DeleteSession(username string) error {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpDeleteSession))
	defer timer.ObserveDuration()

	if _, err := db.conn.Exec(`DELETE FROM sessions WHERE username = ?`, username); err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpDeleteSession).Inc()
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListSessions returns every cached session ordered by username
func (db *DB) ListSessions() ([]Session, error) {
	timer := prometheus.NewTimer(metrics.DBOperationDuration.WithLabelValues(metrics.DBOpListSessions))
	defer timer.ObserveDuration()

	rows, err := db.conn.Query(`
		SELECT username, session_id, access_token, refresh_token,
		       expires_at, created_at, updated_at
		FROM sessions ORDER BY username
	`)
	if err != nil {
		metrics.DBOperationErrorsTotal.WithLabelValues(metrics.DBOpListSessions).Inc()
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var expiresAt, createdAt, updatedAt int64
		if err := rows.Scan(
			&s.Username, &s.SessionID, &s.AccessToken, &s.RefreshToken,
			&expiresAt, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// SessionExpiries adapts ListSessions for the session TTL collector
func (db *DB) SessionExpiries() ([]metrics.SessionExpiry, error) {
	sessions, err := db.ListSessions()
	if err != nil {
		return nil, err
	}
	out := make([]metrics.SessionExpiry, len(sessions))
	for i, s := range sessions {
		out[i] = metrics.SessionExpiry{Username: s.Username, ExpiresAt: s.ExpiresAt}
	}
	return out, nil
}
