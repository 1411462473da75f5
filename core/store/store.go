package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"relato/config"
	"relato/core/utils"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// DB wraps the sql handle together with its placeholder dialect so the
// stores can write `?` queries once and run them on either driver.
type DB struct {
	*sql.DB
	dialect dialect
}

// NewDB opens the backing database. The sqlite driver serves home mode and
// tests; postgres (pgx) is the enterprise deployment target.
func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch driver {
	case "", "sqlite", "sqlite3":
		path := strings.TrimSpace(cfg.DBPath)
		if path == "" {
			return nil, fmt.Errorf("db_path required for sqlite driver")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// A single writer connection avoids SQLITE_BUSY under concurrent mutations.
		db.SetMaxOpenConns(1)
		if logger != nil {
			logger.Printf("store: sqlite at %s", path)
		}
		return &DB{DB: db, dialect: dialectSQLite}, nil
	case "postgres", "pgx":
		if strings.TrimSpace(cfg.DBURL) == "" {
			return nil, fmt.Errorf("db_url required for postgres driver")
		}
		db, err := sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(20)
		db.SetConnMaxIdleTime(5 * time.Minute)
		if logger != nil {
			logger.Printf("store: postgres via pgx")
		}
		return &DB{DB: db, dialect: dialectPostgres}, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
}

// Rebind rewrites `?` placeholders into the $N form postgres expects.
// sqlite queries pass through untouched.
func (d *DB) Rebind(query string) string {
	if d.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.ExecContext(ctx, d.Rebind(query), args...)
}

func (d *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.QueryContext(ctx, d.Rebind(query), args...)
}

func (d *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.QueryRowContext(ctx, d.Rebind(query), args...)
}

// insertID runs an INSERT and reports the generated id. The pgx driver does
// not implement LastInsertId, so postgres goes through RETURNING instead.
func (d *DB) insertID(ctx context.Context, query string, args ...any) (int64, error) {
	if d.dialect == dialectPostgres {
		var id int64
		err := d.QueryRowContext(ctx, d.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := d.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
