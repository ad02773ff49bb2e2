// Package storage provides SQLite implementations of the storage ports.
package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/xvierd/timeline-cli/internal/ports"
	"modernc.org/sqlite"
)

// sqliteStorage implements the ports.Storage interface using SQLite.
type sqliteStorage struct {
	db         *sql.DB
	stateRepo  ports.StateRepository
	eventRepo  ports.EventRepository
	secretRepo ports.SecretStore
}

// Ensure sqliteStorage implements ports.Storage.
var _ ports.Storage = (*sqliteStorage)(nil)

// New creates a new SQLite storage instance.
func New(dbPath string) (ports.Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases
	// from splitting across the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	storage := &sqliteStorage{
		db:         db,
		stateRepo:  newStateRepository(db),
		eventRepo:  newEventRepository(db),
		secretRepo: newSecretRepository(db),
	}

	if err := storage.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return storage, nil
}

// NewMemory creates a new in-memory SQLite storage instance for testing.
func NewMemory() (ports.Storage, error) {
	return New(":memory:")
}

// States returns the timeline state repository.
func (s *sqliteStorage) States() ports.StateRepository {
	return s.stateRepo
}

// Events returns the durable event repository.
func (s *sqliteStorage) Events() ports.EventRepository {
	return s.eventRepo
}

// Secrets returns the database-backed secret store.
func (s *sqliteStorage) Secrets() ports.SecretStore {
	return s.secretRepo
}

// Close closes the database connection.
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

// Migrate creates the database schema.
func (s *sqliteStorage) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS timelines (
		owner_id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		status TEXT NOT NULL,
		day TEXT NOT NULL,
		current_index INTEGER NOT NULL DEFAULT 0,
		lessons TEXT,
		credentials TEXT,
		last_error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_timelines_created ON timelines(created_at);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		event_key TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		target_index INTEGER NOT NULL DEFAULT 0,
		fire_at_ns INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_owner ON events(owner_id);
	CREATE INDEX IF NOT EXISTS idx_events_fire ON events(fire_at_ns);

	CREATE TABLE IF NOT EXISTS secrets (
		owner_id TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == 2067 || code == 1555 // SQLITE_CONSTRAINT_UNIQUE, SQLITE_CONSTRAINT_PRIMARYKEY
}
