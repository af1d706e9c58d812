// Package store provides SQLite-backed storage for filter configurations
// and the label dictionary shared by the HTTP API and the event consumer.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a record with the given id does not exist.
var ErrNotFound = errors.New("record not found")

// ErrNameExists is returned when a create collides with an existing name.
var ErrNameExists = errors.New("name already exists")

// DB wraps an SQLite connection for filter and label storage.
type DB struct {
	db *sql.DB
}

// Open opens or creates an SQLite database at the given path.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer connection to avoid SQLITE_BUSY. This also serializes
	// the consumer's merges against concurrent API writes.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// isUniqueViolation reports whether err is an SQLite unique constraint
// failure, i.e. a create that lost a race on a unique name.
func isUniqueViolation(err error) bool {
	var sqlErr sqlite3.Error
	return errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS filter_labels (
			label_id       INTEGER PRIMARY KEY AUTOINCREMENT,
			label_name     TEXT NOT NULL UNIQUE,
			label_values   TEXT NOT NULL,
			create_ts      TEXT NOT NULL,
			last_update_ts TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS filter_config (
			filter_id      INTEGER PRIMARY KEY AUTOINCREMENT,
			filter_name    TEXT NOT NULL UNIQUE,
			filter_config  TEXT NOT NULL,
			columns        TEXT NOT NULL,
			grouping       TEXT NOT NULL,
			filter_status  TEXT NOT NULL,
			created_by     TEXT NOT NULL,
			create_ts      TEXT NOT NULL,
			last_update_ts TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Debug("database schema up to date")
	return nil
}
