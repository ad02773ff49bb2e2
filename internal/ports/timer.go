package ports

import (
	"context"

	"github.com/xvierd/timeline-cli/internal/domain"
)

// Timer delivers scheduled events at or after their fire time, even across
// process restarts. Handles are event keys.
// This is a driven port (implemented by adapters).
type Timer interface {
	// ScheduleReplacing registers ev, superseding a pending event with the same key.
	ScheduleReplacing(ctx context.Context, ev domain.ScheduledEvent) (string, error)

	// ScheduleAdditional registers ev next to whatever is already pending.
	ScheduleAdditional(ctx context.Context, ev domain.ScheduledEvent) (string, error)

	// Cancel drops the pending event behind handle, if any.
	Cancel(ctx context.Context, handle string) error

	// CancelAll drops every pending event of an owner.
	CancelAll(ctx context.Context, ownerID string) error
}

// EventHandler is invoked by a Timer when an event fires.
type EventHandler func(ctx context.Context, ev domain.ScheduledEvent)

// Presenter publishes an owner's state to whatever displays it. Calls must
// not block the caller for long; failures are the presenter's business.
// This is a driven port (implemented by adapters).
type Presenter interface {
	Present(ownerID string, state *domain.TimelineState)
}
