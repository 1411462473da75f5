package store

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"relato/config"
	"relato/core/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqliteMigrations is applied in order for the sqlite driver (home mode and
// tests). The postgres schema lives in migrations/*.sql and is applied by
// goose.
var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		role TEXT NOT NULL,
		csrf_token TEXT NOT NULL,
		ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		last_seen_at TIMESTAMP NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS incidents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'medium',
		state TEXT NOT NULL DEFAULT 'open',
		category TEXT NOT NULL DEFAULT '',
		creator_id INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY(creator_id) REFERENCES users(id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_creator ON incidents(creator_id);`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_state ON incidents(state);`,
	`CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		incident_id INTEGER NOT NULL,
		author_id INTEGER NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY(incident_id) REFERENCES incidents(id) ON DELETE CASCADE,
		FOREIGN KEY(author_id) REFERENCES users(id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_comments_incident ON comments(incident_id);`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recipient_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		read INTEGER NOT NULL DEFAULT 0,
		incident_id INTEGER,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY(recipient_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY(incident_id) REFERENCES incidents(id) ON DELETE SET NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, read);`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);`,
}

// ApplyMigrations brings the schema up to date for the configured driver.
func ApplyMigrations(ctx context.Context, db *DB, cfg *config.AppConfig, logger *utils.Logger) error {
	driver := "sqlite"
	if cfg != nil {
		driver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	}
	switch driver {
	case "", "sqlite", "sqlite3":
		if logger != nil {
			logger.Printf("store: applying sqlite migrations")
		}
		for i, stmt := range sqliteMigrations {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("sqlite migration #%d failed: %w", i+1, err)
			}
		}
		return nil
	case "postgres", "pgx":
		goose.SetBaseFS(migrationsFS)
		if err := goose.SetDialect("postgres"); err != nil {
			return err
		}
		if logger != nil {
			logger.Printf("store: applying postgres migrations")
		}
		return goose.UpContext(ctx, db.DB, "migrations")
	default:
		return fmt.Errorf("unsupported db driver %q", driver)
	}
}
