package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Open parses DATABASE_URI (spec.md §6) and returns a database/sql handle
// plus the Dialect to drive it, so the rest of the store never needs to
// know which engine is underneath — grounded on
// original_source/database3.py's Database class, which special-cases
// sqlite+:memory: the same way.
func Open(ctx context.Context, uri string) (*sql.DB, Dialect, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, nil, fmt.Errorf("store: parse DATABASE_URI: %w", err)
	}

	switch {
	case strings.HasPrefix(u.Scheme, "postgres"):
		db, err := sql.Open("pgx", uri)
		if err != nil {
			return nil, nil, fmt.Errorf("store: open postgres: %w", err)
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("store: ping postgres: %w", err)
		}
		return db, Postgres, nil

	case strings.HasPrefix(u.Scheme, "sqlite"):
		path := strings.TrimPrefix(uri, u.Scheme+"://")
		if path == "" {
			path = u.Opaque
		}
		memory := path == ":memory:" || path == ""
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
		if memory {
			dsn = "file::memory:?cache=shared&_pragma=foreign_keys(ON)"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("store: open sqlite: %w", err)
		}
		if memory {
			// A single shared connection; every additional one would see
			// an empty database, the one documented special case in §6.
			db.SetMaxOpenConns(1)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("store: ping sqlite: %w", err)
		}
		return db, SQLite, nil

	default:
		return nil, nil, fmt.Errorf("store: unsupported DATABASE_URI scheme %q", u.Scheme)
	}
}
