package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UsersStore interface {
	Create(ctx context.Context, u *User) (int64, error)
	Get(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdateRole(ctx context.Context, id int64, role string) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

type usersStore struct {
	db *DB
}

func NewUsersStore(db *DB) UsersStore {
	return &usersStore{db: db}
}

var ErrDuplicateEmail = errors.New("email already in use")

func (s *usersStore) Create(ctx context.Context, u *User) (int64, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	existing, err := s.FindByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, ErrDuplicateEmail
	}
	role := strings.ToLower(strings.TrimSpace(u.Role))
	if role == "" {
		role = RoleUser
	}
	now := time.Now().UTC()
	id, err := s.db.insertID(ctx, `
		INSERT INTO users(email, name, password_hash, role, created_at, updated_at)
		VALUES(?,?,?,?,?,?)`,
		email, strings.TrimSpace(u.Name), u.PasswordHash, role, now, now)
	if err != nil {
		return 0, err
	}
	u.ID = id
	u.Email = email
	u.Role = role
	u.CreatedAt = now
	u.UpdatedAt = now
	return id, nil
}

func (s *usersStore) Get(ctx context.Context, id int64) (*User, error) {
	row := s.db.queryRow(ctx, `
		SELECT id, email, name, password_hash, role, created_at, updated_at
		FROM users WHERE id=?`, id)
	return scanUser(row)
}

func (s *usersStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.queryRow(ctx, `
		SELECT id, email, name, password_hash, role, created_at, updated_at
		FROM users WHERE email=?`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func (s *usersStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.query(ctx, `
		SELECT id, email, name, password_hash, role, created_at, updated_at
		FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (s *usersStore) UpdateRole(ctx context.Context, id int64, role string) error {
	now := time.Now().UTC()
	res, err := s.db.exec(ctx, `UPDATE users SET role=?, updated_at=? WHERE id=?`,
		strings.ToLower(strings.TrimSpace(role)), now, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *usersStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.exec(ctx, `DELETE FROM users WHERE id=?`, id)
	return err
}

func (s *usersStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
