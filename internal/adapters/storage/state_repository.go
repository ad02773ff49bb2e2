package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
)

const dayLayout = "2006-01-02"

const stateColumns = `
	owner_id, label, status, day, current_index, lessons,
	credentials, last_error, created_at, updated_at
`

// queryer is the subset of *sql.DB and *sql.Tx the scanners need.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// stateRepository implements ports.StateRepository using SQLite.
type stateRepository struct {
	db *sql.DB
}

// newStateRepository creates a new state repository.
func newStateRepository(db *sql.DB) ports.StateRepository {
	return &stateRepository{db: db}
}

// Get retrieves an owner's state.
func (r *stateRepository) Get(ctx context.Context, ownerID string) (*domain.TimelineState, error) {
	return getState(ctx, r.db, ownerID)
}

// Save inserts or replaces an owner's state.
func (r *stateRepository) Save(ctx context.Context, state *domain.TimelineState) error {
	if err := saveState(ctx, r.db, state); err != nil {
		return fmt.Errorf("failed to save timeline: %w", err)
	}
	return nil
}

// Update performs a read-check-write inside one transaction.
func (r *stateRepository) Update(ctx context.Context, ownerID string, fn func(*domain.TimelineState) error) (*domain.TimelineState, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	state, err := getState(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}

	if err := fn(state); err != nil {
		return nil, err
	}

	if err := saveState(ctx, tx, state); err != nil {
		return nil, fmt.Errorf("failed to update timeline: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit timeline update: %w", err)
	}

	return state, nil
}

// Delete removes an owner's state.
func (r *stateRepository) Delete(ctx context.Context, ownerID string) error {
	query := `DELETE FROM timelines WHERE owner_id = ?`

	if _, err := r.db.ExecContext(ctx, query, ownerID); err != nil {
		return fmt.Errorf("failed to delete timeline: %w", err)
	}

	return nil
}

// List returns every owner ordered by creation time.
func (r *stateRepository) List(ctx context.Context) ([]*domain.TimelineState, error) {
	query := `SELECT ` + stateColumns + ` FROM timelines ORDER BY created_at ASC, label ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list timelines: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []*domain.TimelineState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating timelines: %w", err)
	}

	return states, nil
}

func getState(ctx context.Context, q queryer, ownerID string) (*domain.TimelineState, error) {
	query := `SELECT ` + stateColumns + ` FROM timelines WHERE owner_id = ?`

	state, err := scanState(q.QueryRowContext(ctx, query, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOwnerNotFound
	}
	return state, err
}

func saveState(ctx context.Context, q queryer, state *domain.TimelineState) error {
	query := `
		INSERT INTO timelines (` + stateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			label = excluded.label,
			status = excluded.status,
			day = excluded.day,
			current_index = excluded.current_index,
			lessons = excluded.lessons,
			credentials = excluded.credentials,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`

	lessonsJSON, err := json.Marshal(state.Lessons)
	if err != nil {
		return fmt.Errorf("failed to encode lessons: %w", err)
	}

	var credentialsJSON []byte
	if state.Credentials != nil {
		credentialsJSON, err = json.Marshal(state.Credentials)
		if err != nil {
			return fmt.Errorf("failed to encode credentials: %w", err)
		}
	}

	createdAt := state.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = q.ExecContext(ctx, query,
		state.OwnerID,
		state.Label,
		string(state.Status),
		state.Day.Format(dayLayout),
		state.CurrentIndex,
		string(lessonsJSON),
		nullableString(credentialsJSON),
		state.LastError,
		createdAt,
		state.UpdatedAt,
	)
	return err
}

// rowScanner is implemented by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (*domain.TimelineState, error) {
	var (
		state       domain.TimelineState
		status      string
		day         string
		lessons     sql.NullString
		credentials sql.NullString
		lastError   sql.NullString
	)

	err := row.Scan(
		&state.OwnerID,
		&state.Label,
		&status,
		&day,
		&state.CurrentIndex,
		&lessons,
		&credentials,
		&lastError,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan timeline: %w", err)
	}

	state.Status = domain.TimelineStatus(status)
	state.LastError = lastError.String

	parsedDay, err := time.ParseInLocation(dayLayout, day, time.Local)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timeline day %q: %w", day, err)
	}
	state.Day = parsedDay

	if lessons.Valid && lessons.String != "" {
		if err := json.Unmarshal([]byte(lessons.String), &state.Lessons); err != nil {
			return nil, fmt.Errorf("failed to decode lessons: %w", err)
		}
	}

	if credentials.Valid && credentials.String != "" {
		var c domain.Credentials
		if err := json.Unmarshal([]byte(credentials.String), &c); err != nil {
			return nil, fmt.Errorf("failed to decode credentials: %w", err)
		}
		state.Credentials = &c
	}

	return &state, nil
}

// nullableString returns a *string from bytes, or nil if empty.
func nullableString(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := string(b)
	return &s
}
