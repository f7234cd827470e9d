// Package store provides the server-side order and purchase persistence
// on SQLite. Unlike the client-side key-value state, this is the
// authoritative purchase record.
package store

import (
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps the sqlx handle.
type DB struct {
	*sqlx.DB
}

// Open opens (or creates) the SQLite database at dsn and applies the
// schema.
func Open(dsn string) (*DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Pragmas for better concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, errors.Wrap(err, "failed to set WAL mode")
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000"); err != nil {
		return nil, errors.Wrap(err, "failed to set busy timeout")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	return &DB{db}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.DB.Close()
}
