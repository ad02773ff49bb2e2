// Package ports defines the interfaces (driven and driving ports)
// for the timeline application following hexagonal architecture principles.
// These interfaces define the contracts between the domain layer and
// external infrastructure.
package ports

import (
	"context"

	"github.com/xvierd/timeline-cli/internal/domain"
)

// StateRepository defines the interface for timeline state persistence.
// This is a driven port (implemented by adapters).
type StateRepository interface {
	// Get retrieves an owner's state. Returns domain.ErrOwnerNotFound when absent.
	Get(ctx context.Context, ownerID string) (*domain.TimelineState, error)

	// Save inserts or replaces an owner's state in a single write.
	Save(ctx context.Context, state *domain.TimelineState) error

	// Update runs fn against the stored state inside one transaction.
	// The state is written only when fn returns nil; any error from fn
	// aborts the transaction and is returned unchanged.
	Update(ctx context.Context, ownerID string, fn func(*domain.TimelineState) error) (*domain.TimelineState, error)

	// Delete removes an owner's state. Deleting a missing owner is not an error.
	Delete(ctx context.Context, ownerID string) error

	// List returns all owners ordered by creation time.
	List(ctx context.Context) ([]*domain.TimelineState, error)
}

// EventRepository persists pending wake-ups so they survive restarts.
// This is a driven port (implemented by adapters).
type EventRepository interface {
	// Put stores ev, replacing any pending event with the same key.
	Put(ctx context.Context, ev domain.ScheduledEvent) error

	// Append stores ev unless an event with the same key is already pending.
	// Reports whether ev was stored.
	Append(ctx context.Context, ev domain.ScheduledEvent) (bool, error)

	// Take removes the event with the given id and reports whether it was
	// still pending. A fired event must be taken before it is handled.
	Take(ctx context.Context, id string) (bool, error)

	// DeleteByKey removes the pending event with the given key, if any.
	DeleteByKey(ctx context.Context, key string) (bool, error)

	// DeleteByOwner removes every pending event of an owner.
	DeleteByOwner(ctx context.Context, ownerID string) (int, error)

	// Pending returns all pending events ordered by fire time.
	Pending(ctx context.Context) ([]domain.ScheduledEvent, error)

	// ForOwner returns an owner's pending events ordered by fire time.
	ForOwner(ctx context.Context, ownerID string) ([]domain.ScheduledEvent, error)
}

// Storage is the combined repository interface.
// This is a driven port (implemented by adapters).
type Storage interface {
	// States provides access to timeline state operations.
	States() StateRepository

	// Events provides access to durable event operations.
	Events() EventRepository

	// Secrets provides the database-backed secret store.
	Secrets() SecretStore

	// Close closes the storage connection.
	Close() error

	// Migrate runs database migrations.
	Migrate() error
}
