package domain

import (
	"fmt"
	"time"
)

// EventKind distinguishes the two wake-ups a timeline needs.
type EventKind string

const (
	EventRefresh      EventKind = "refresh"
	EventAdvanceIndex EventKind = "advance_index"
)

// ScheduledEvent is a durable wake-up for one owner.
type ScheduledEvent struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Kind        EventKind `json:"kind"`
	TargetIndex int       `json:"target_index,omitempty"`
	FireAt      time.Time `json:"fire_at"`
}

// NewRefreshEvent creates the end-of-day refresh wake-up.
func NewRefreshEvent(ownerID string, at time.Time) ScheduledEvent {
	return ScheduledEvent{
		ID:      eventID(ownerID, EventRefresh, 0, at),
		OwnerID: ownerID,
		Kind:    EventRefresh,
		FireAt:  at,
	}
}

// NewAdvanceEvent creates a wake-up that moves the current index to target.
func NewAdvanceEvent(ownerID string, target int, at time.Time) ScheduledEvent {
	return ScheduledEvent{
		ID:          eventID(ownerID, EventAdvanceIndex, target, at),
		OwnerID:     ownerID,
		Kind:        EventAdvanceIndex,
		TargetIndex: target,
		FireAt:      at,
	}
}

// Key is the timer handle. An owner has at most one pending refresh, while
// advance events are keyed by the instant they fire at.
func (e ScheduledEvent) Key() string {
	if e.Kind == EventRefresh {
		return e.OwnerID + "/refresh"
	}
	return fmt.Sprintf("%s/advance/%d", e.OwnerID, e.FireAt.UnixNano())
}

// Before orders events by fire time; at equal instants advances go first
// so the index is moved before the day is replaced.
func (e ScheduledEvent) Before(other ScheduledEvent) bool {
	if !e.FireAt.Equal(other.FireAt) {
		return e.FireAt.Before(other.FireAt)
	}
	return e.Kind == EventAdvanceIndex && other.Kind == EventRefresh
}

// String renders the event for logs and CLI output.
func (e ScheduledEvent) String() string {
	if e.Kind == EventRefresh {
		return fmt.Sprintf("refresh at %s", e.FireAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("advance to %d at %s", e.TargetIndex, e.FireAt.Format(time.RFC3339))
}
