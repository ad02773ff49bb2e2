package ports

import (
	"context"

	"github.com/xvierd/timeline-cli/internal/domain"
)

// MCPHandler defines the interface for MCP server operations.
// This is a driving port (called by the application layer).
type MCPHandler interface {
	// Start begins serving MCP requests.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the server.
	Stop() error

	// IsRunning returns true if the server is active.
	IsRunning() bool
}

// TimelineProvider provides timeline information and triggers to the MCP server.
// This is a driven port (implemented by services layer).
type TimelineProvider interface {
	// ListOwners returns every configured owner.
	ListOwners(ctx context.Context) ([]*domain.TimelineState, error)

	// GetTimeline resolves query (id, id prefix or label) to one owner.
	GetTimeline(ctx context.Context, query string) (*domain.TimelineState, error)

	// PendingEvents returns an owner's scheduled wake-ups.
	PendingEvents(ctx context.Context, ownerID string) ([]domain.ScheduledEvent, error)

	// RefreshTimeline runs a refresh cycle and returns the resulting state.
	RefreshTimeline(ctx context.Context, ownerID string) (*domain.TimelineState, error)

	// SelectLesson moves an owner's current index.
	SelectLesson(ctx context.Context, ownerID string, index int) (*domain.TimelineState, error)
}
