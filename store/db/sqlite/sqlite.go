package sqlite

import (
	"context"
	"database/sql"
	"strings"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"
	"github.com/pkg/errors"

	"github.com/hrygo/semcache/internal/profile"
	"github.com/hrygo/semcache/plugin/vectorenc"
	"github.com/hrygo/semcache/store"
)

// SQLite is the development/testing driver. It has no vector index:
// embeddings are stored as encoded blobs and scored exhaustively in Go.
// For production use, prefer PostgreSQL with pgvector.

type DB struct {
	db       *sql.DB
	profile  *profile.Profile
	encoding vectorenc.Encoding
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	encoding, err := vectorenc.Parse(profile.VectorEncoding)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// A single connection keeps in-memory databases coherent and avoids
	// SQLITE_BUSY under concurrent writes.
	if strings.Contains(profile.DSN, ":memory:") {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{
		db:       db,
		profile:  profile,
		encoding: encoding,
	}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate creates the cache entry table and its indexes.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache_entry (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uid TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			query TEXT NOT NULL,
			response TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entry_user_id ON cache_entry (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entry_created_ts ON cache_entry (created_ts)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate cache_entry schema")
		}
	}
	return nil
}
