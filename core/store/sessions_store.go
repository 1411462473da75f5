package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type SessionRecord struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	Role       string    `json:"role"`
	CSRFToken  string    `json:"-"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type SessionsStore interface {
	Save(ctx context.Context, sr *SessionRecord) error
	Get(ctx context.Context, id string) (*SessionRecord, error)
	UpdateActivity(ctx context.Context, id string, now time.Time, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	DeleteForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionsStore struct {
	db *DB
}

func NewSessionsStore(db *DB) SessionsStore {
	return &sessionsStore{db: db}
}

func (s *sessionsStore) Save(ctx context.Context, sr *SessionRecord) error {
	_, err := s.db.exec(ctx, `
		INSERT INTO sessions(id, user_id, role, csrf_token, ip, user_agent, created_at, last_seen_at, expires_at)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		sr.ID, sr.UserID, sr.Role, sr.CSRFToken, sr.IP, sr.UserAgent, sr.CreatedAt, sr.LastSeenAt, sr.ExpiresAt)
	return err
}

// Get returns nil for unknown or expired sessions; expired rows are left for
// the retention sweeper.
func (s *sessionsStore) Get(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.queryRow(ctx, `
		SELECT id, user_id, role, csrf_token, ip, user_agent, created_at, last_seen_at, expires_at
		FROM sessions WHERE id=?`, id)
	var sr SessionRecord
	if err := row.Scan(&sr.ID, &sr.UserID, &sr.Role, &sr.CSRFToken, &sr.IP, &sr.UserAgent, &sr.CreatedAt, &sr.LastSeenAt, &sr.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if !sr.ExpiresAt.After(time.Now().UTC()) {
		return nil, nil
	}
	return &sr, nil
}

func (s *sessionsStore) UpdateActivity(ctx context.Context, id string, now time.Time, ttl time.Duration) error {
	_, err := s.db.exec(ctx, `UPDATE sessions SET last_seen_at=?, expires_at=? WHERE id=?`,
		now, now.Add(ttl), id)
	return err
}

func (s *sessionsStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.exec(ctx, `DELETE FROM sessions WHERE id=?`, id)
	return err
}

func (s *sessionsStore) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := s.db.exec(ctx, `DELETE FROM sessions WHERE user_id=?`, userID)
	return err
}

func (s *sessionsStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
