package storage

import (
	"database/sql"
	"fmt"

	"github.com/rollcall/rollcall/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

const (
	SchemaVersion = 2
)

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection
func NewDB(cfg *config.Config) (*DB, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)

	database := &DB{conn: db}

	// Run migrations
	if err := database.migrate(); err != nil {
		return nil, err
	}

	return database, nil
}

// migrate applies database migrations
func (db *DB) migrate() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Check current schema version
	var version int
	err = tx.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return err
	}

	// Apply migrations incrementally
	for version < SchemaVersion {
		version++
		switch version {
		case 1:
			if err := db.applySchemaV1(tx); err != nil {
				return fmt.Errorf("failed to apply schema v%d: %w", version, err)
			}
		case 2:
			if err := db.applySchemaV2(tx); err != nil {
				return fmt.Errorf("failed to apply schema v%d: %w", version, err)
			}
		default:
			return fmt.Errorf("unknown schema version: %d", version)
		}
	}

	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

// applySchemaV1 applies the initial schema
func (db *DB) applySchemaV1(tx *sql.Tx) error {
	// Create courses table; a course namespaces everything else by its CRN
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS courses (
			crn TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create identity vectors table; one record per label per course
	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS identity_vectors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			crn TEXT NOT NULL REFERENCES courses(crn),
			label TEXT NOT NULL,
			vector BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE(crn, label)
		)
	`)
	if err != nil {
		return err
	}

	// Create QR tokens table; one rendered artifact per email per course
	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS qr_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			crn TEXT NOT NULL REFERENCES courses(crn),
			email TEXT NOT NULL,
			username TEXT NOT NULL,
			payload TEXT NOT NULL,
			artifact BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE(crn, email)
		)
	`)
	if err != nil {
		return err
	}

	// Create attendance events table, ordered by arrival (rowid)
	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS attendance_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			crn TEXT NOT NULL REFERENCES courses(crn),
			identity TEXT NOT NULL,
			email TEXT,
			action TEXT NOT NULL,
			channel TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)
	`)
	return err
}

// applySchemaV2 enforces immutability invariants at the database layer.
func (db *DB) applySchemaV2(tx *sql.Tx) error {
	// The attendance ledger is append-only.
	_, err := tx.Exec(`
		CREATE TRIGGER IF NOT EXISTS attendance_events_update_guard
		BEFORE UPDATE ON attendance_events
		BEGIN
			SELECT RAISE(ABORT, 'attendance events are append-only');
		END;
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TRIGGER IF NOT EXISTS attendance_events_delete_guard
		BEFORE DELETE ON attendance_events
		BEGIN
			SELECT RAISE(ABORT, 'attendance events are append-only');
		END;
	`)
	if err != nil {
		return err
	}

	// Identity records are immutable once enrolled.
	_, err = tx.Exec(`
		CREATE TRIGGER IF NOT EXISTS identity_vectors_update_guard
		BEFORE UPDATE ON identity_vectors
		BEGIN
			SELECT RAISE(ABORT, 'identity records are immutable');
		END;
	`)
	return err
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// GetConnection returns the underlying database connection
func (db *DB) GetConnection() *sql.DB {
	return db.conn
}
