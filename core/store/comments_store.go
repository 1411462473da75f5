package store

import (
	"context"
	"strings"
	"time"
)

type Comment struct {
	ID         int64     `json:"id"`
	IncidentID int64     `json:"incident_id"`
	AuthorID   int64     `json:"author_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// CommentsStore is append-only; there is no update or delete in the contract.
type CommentsStore interface {
	Create(ctx context.Context, c *Comment) (int64, error)
	ListByIncident(ctx context.Context, incidentID int64) ([]Comment, error)
}

type commentsStore struct {
	db *DB
}

func NewCommentsStore(db *DB) CommentsStore {
	return &commentsStore{db: db}
}

func (s *commentsStore) Create(ctx context.Context, c *Comment) (int64, error) {
	now := time.Now().UTC()
	id, err := s.db.insertID(ctx, `
		INSERT INTO comments(incident_id, author_id, body, created_at)
		VALUES(?,?,?,?)`,
		c.IncidentID, c.AuthorID, strings.TrimSpace(c.Body), now)
	if err != nil {
		return 0, err
	}
	c.ID = id
	c.CreatedAt = now
	return id, nil
}

func (s *commentsStore) ListByIncident(ctx context.Context, incidentID int64) ([]Comment, error) {
	rows, err := s.db.query(ctx, `
		SELECT id, incident_id, author_id, body, created_at
		FROM comments WHERE incident_id=?
		ORDER BY created_at ASC, id ASC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.IncidentID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
