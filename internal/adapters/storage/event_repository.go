package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
)

const eventColumns = `id, event_key, owner_id, kind, target_index, fire_at_ns`

// eventRepository implements ports.EventRepository using SQLite.
type eventRepository struct {
	db *sql.DB
}

// newEventRepository creates a new event repository.
func newEventRepository(db *sql.DB) ports.EventRepository {
	return &eventRepository{db: db}
}

// Put stores ev, replacing a pending event with the same key.
func (r *eventRepository) Put(ctx context.Context, ev domain.ScheduledEvent) error {
	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_key) DO UPDATE SET
			id = excluded.id,
			owner_id = excluded.owner_id,
			kind = excluded.kind,
			target_index = excluded.target_index,
			fire_at_ns = excluded.fire_at_ns
	`

	if _, err := r.db.ExecContext(ctx, query, eventArgs(ev)...); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	return nil
}

// Append stores ev unless its key is already pending.
func (r *eventRepository) Append(ctx context.Context, ev domain.ScheduledEvent) (bool, error) {
	query := `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, eventArgs(ev)...)
	if isUniqueConstraintError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to append event: %w", err)
	}

	return true, nil
}

// Take removes the event with the given id.
func (r *eventRepository) Take(ctx context.Context, id string) (bool, error) {
	return r.deleteWhere(ctx, `DELETE FROM events WHERE id = ?`, id)
}

// DeleteByKey removes the event with the given key.
func (r *eventRepository) DeleteByKey(ctx context.Context, key string) (bool, error) {
	return r.deleteWhere(ctx, `DELETE FROM events WHERE event_key = ?`, key)
}

// DeleteByOwner removes every event of an owner.
func (r *eventRepository) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete owner events: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(n), nil
}

// Pending returns all events ordered by fire time.
func (r *eventRepository) Pending(ctx context.Context) ([]domain.ScheduledEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY fire_at_ns ASC, kind ASC`
	return r.query(ctx, query)
}

// ForOwner returns an owner's events ordered by fire time.
func (r *eventRepository) ForOwner(ctx context.Context, ownerID string) ([]domain.ScheduledEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE owner_id = ? ORDER BY fire_at_ns ASC, kind ASC`
	return r.query(ctx, query, ownerID)
}

func (r *eventRepository) deleteWhere(ctx context.Context, query string, arg string) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, arg)
	if err != nil {
		return false, fmt.Errorf("failed to delete event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n > 0, nil
}

func (r *eventRepository) query(ctx context.Context, query string, args ...any) ([]domain.ScheduledEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []domain.ScheduledEvent
	for rows.Next() {
		var (
			ev     domain.ScheduledEvent
			key    string
			kind   string
			fireNs int64
		)
		if err := rows.Scan(&ev.ID, &key, &ev.OwnerID, &kind, &ev.TargetIndex, &fireNs); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Kind = domain.EventKind(kind)
		ev.FireAt = time.Unix(0, fireNs)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

func eventArgs(ev domain.ScheduledEvent) []any {
	return []any{
		ev.ID,
		ev.Key(),
		ev.OwnerID,
		string(ev.Kind),
		ev.TargetIndex,
		ev.FireAt.UnixNano(),
	}
}
