package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	NotificationStateChanged = "state_changed"
	NotificationCommentAdded = "comment_added"
	NotificationSystem       = "system"
)

type Notification struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Read        bool      `json:"read"`
	IncidentID  *int64    `json:"incident_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type NotificationFilter struct {
	RecipientID int64
	UnreadOnly  bool
	Limit       int
}

type NotificationsStore interface {
	Create(ctx context.Context, n *Notification) (int64, error)
	Get(ctx context.Context, id int64) (*Notification, error)
	List(ctx context.Context, filter NotificationFilter) ([]Notification, error)
	SetRead(ctx context.Context, id int64, read bool) error
	MarkAllRead(ctx context.Context, recipientID int64) (int64, error)
	Delete(ctx context.Context, id int64) error
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationsStore struct {
	db *DB
}

func NewNotificationsStore(db *DB) NotificationsStore {
	return &notificationsStore{db: db}
}

func (s *notificationsStore) Create(ctx context.Context, n *Notification) (int64, error) {
	now := time.Now().UTC()
	id, err := s.db.insertID(ctx, `
		INSERT INTO notifications(recipient_id, kind, title, body, read, incident_id, created_at)
		VALUES(?,?,?,?,?,?,?)`,
		n.RecipientID, strings.TrimSpace(n.Kind), strings.TrimSpace(n.Title), n.Body,
		boolToInt(n.Read), nullableID(n.IncidentID), now)
	if err != nil {
		return 0, err
	}
	n.ID = id
	n.CreatedAt = now
	return id, nil
}

func (s *notificationsStore) Get(ctx context.Context, id int64) (*Notification, error) {
	row := s.db.queryRow(ctx, `
		SELECT id, recipient_id, kind, title, body, read, incident_id, created_at
		FROM notifications WHERE id=?`, id)
	var n Notification
	var read int
	var incidentID sql.NullInt64
	if err := row.Scan(&n.ID, &n.RecipientID, &n.Kind, &n.Title, &n.Body, &read, &incidentID, &n.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	n.Read = read == 1
	n.IncidentID = idPtr(incidentID)
	return &n, nil
}

func (s *notificationsStore) List(ctx context.Context, filter NotificationFilter) ([]Notification, error) {
	query := `
		SELECT id, recipient_id, kind, title, body, read, incident_id, created_at
		FROM notifications WHERE recipient_id=?`
	args := []any{filter.RecipientID}
	if filter.UnreadOnly {
		query += " AND read=0"
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	rows, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Notification
	for rows.Next() {
		var n Notification
		var read int
		var incidentID sql.NullInt64
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Kind, &n.Title, &n.Body, &read, &incidentID, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Read = read == 1
		n.IncidentID = idPtr(incidentID)
		res = append(res, n)
	}
	return res, rows.Err()
}

func (s *notificationsStore) SetRead(ctx context.Context, id int64, read bool) error {
	res, err := s.db.exec(ctx, `UPDATE notifications SET read=? WHERE id=?`, boolToInt(read), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *notificationsStore) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	res, err := s.db.exec(ctx, `UPDATE notifications SET read=1 WHERE recipient_id=? AND read=0`, recipientID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *notificationsStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.exec(ctx, `DELETE FROM notifications WHERE id=?`, id)
	return err
}

func (s *notificationsStore) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.exec(ctx, `DELETE FROM notifications WHERE read=1 AND created_at <= ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
