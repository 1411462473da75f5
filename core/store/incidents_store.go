package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConflict signals an optimistic-version mismatch; callers re-read and
// retry or give up.
var ErrConflict = errors.New("conflict")

type Incident struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	State       string    `json:"state"`
	Category    string    `json:"category,omitempty"`
	CreatorID   int64     `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

type IncidentFilter struct {
	State     string
	Priority  string
	Search    string
	CreatorID int64
	Limit     int
	Offset    int
}

type IncidentsStore interface {
	Create(ctx context.Context, inc *Incident) (int64, error)
	Get(ctx context.Context, id int64) (*Incident, error)
	List(ctx context.Context, filter IncidentFilter) ([]Incident, error)
	Update(ctx context.Context, inc *Incident, expectedVersion int) error
	Delete(ctx context.Context, id int64) error
}

type incidentsStore struct {
	db *DB
}

func NewIncidentsStore(db *DB) IncidentsStore {
	return &incidentsStore{db: db}
}

func (s *incidentsStore) Create(ctx context.Context, inc *Incident) (int64, error) {
	if inc.Version <= 0 {
		inc.Version = 1
	}
	now := time.Now().UTC()
	id, err := s.db.insertID(ctx, `
		INSERT INTO incidents(title, description, priority, state, category, creator_id, created_at, updated_at, version)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		strings.TrimSpace(inc.Title), strings.TrimSpace(inc.Description), inc.Priority, inc.State,
		strings.TrimSpace(inc.Category), inc.CreatorID, now, now, inc.Version)
	if err != nil {
		return 0, err
	}
	inc.ID = id
	inc.CreatedAt = now
	inc.UpdatedAt = now
	return id, nil
}

func (s *incidentsStore) Get(ctx context.Context, id int64) (*Incident, error) {
	row := s.db.queryRow(ctx, `
		SELECT id, title, description, priority, state, category, creator_id, created_at, updated_at, version
		FROM incidents WHERE id=?`, id)
	var inc Incident
	if err := row.Scan(&inc.ID, &inc.Title, &inc.Description, &inc.Priority, &inc.State, &inc.Category,
		&inc.CreatorID, &inc.CreatedAt, &inc.UpdatedAt, &inc.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &inc, nil
}

func (s *incidentsStore) List(ctx context.Context, filter IncidentFilter) ([]Incident, error) {
	var clauses []string
	var args []any
	if filter.State != "" {
		clauses = append(clauses, "state=?")
		args = append(args, filter.State)
	}
	if filter.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, filter.Priority)
	}
	if filter.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR description LIKE ?)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q)
	}
	if filter.CreatorID > 0 {
		clauses = append(clauses, "creator_id=?")
		args = append(args, filter.CreatorID)
	}
	query := `SELECT id, title, description, priority, state, category, creator_id, created_at, updated_at, version FROM incidents`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}
	rows, err := s.db.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Incident
	for rows.Next() {
		var inc Incident
		if err := rows.Scan(&inc.ID, &inc.Title, &inc.Description, &inc.Priority, &inc.State, &inc.Category,
			&inc.CreatorID, &inc.CreatedAt, &inc.UpdatedAt, &inc.Version); err != nil {
			return nil, err
		}
		res = append(res, inc)
	}
	return res, rows.Err()
}

func (s *incidentsStore) Update(ctx context.Context, inc *Incident, expectedVersion int) error {
	now := time.Now().UTC()
	res, err := s.db.exec(ctx, `
		UPDATE incidents SET title=?, description=?, priority=?, state=?, category=?, updated_at=?, version=version+1
		WHERE id=? AND version=?`,
		strings.TrimSpace(inc.Title), strings.TrimSpace(inc.Description), inc.Priority, inc.State,
		strings.TrimSpace(inc.Category), now, inc.ID, expectedVersion)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	inc.Version = expectedVersion + 1
	inc.UpdatedAt = now
	return nil
}

// Delete removes the incident; comments go with it via ON DELETE CASCADE and
// notifications keep their row with the incident reference cleared.
func (s *incidentsStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.exec(ctx, `DELETE FROM incidents WHERE id=?`, id)
	return err
}
