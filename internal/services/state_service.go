package services

import (
	"context"
	"errors"

	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
)

// errNoDriver is returned by triggers when no timeline service is attached.
var errNoDriver = errors.New("timeline service not available")

// StateService implements the TimelineProvider interface.
type StateService struct {
	owners    *OwnerService
	timelines *TimelineService
}

// NewStateService creates a new state service.
func NewStateService(owners *OwnerService) *StateService {
	return &StateService{owners: owners}
}

// SetTimelineService sets the driver used for refreshes and selections.
func (s *StateService) SetTimelineService(timelines *TimelineService) {
	s.timelines = timelines
}

// ListOwners implements ports.TimelineProvider.
func (s *StateService) ListOwners(ctx context.Context) ([]*domain.TimelineState, error) {
	return s.owners.List(ctx)
}

// GetTimeline implements ports.TimelineProvider.
func (s *StateService) GetTimeline(ctx context.Context, query string) (*domain.TimelineState, error) {
	return s.owners.Resolve(ctx, query)
}

// PendingEvents implements ports.TimelineProvider.
func (s *StateService) PendingEvents(ctx context.Context, ownerID string) ([]domain.ScheduledEvent, error) {
	return s.owners.PendingEvents(ctx, ownerID)
}

// RefreshTimeline implements ports.TimelineProvider.
func (s *StateService) RefreshTimeline(ctx context.Context, ownerID string) (*domain.TimelineState, error) {
	if s.timelines == nil {
		return nil, errNoDriver
	}
	return s.timelines.Refresh(ctx, ownerID, ReasonManual)
}

// SelectLesson implements ports.TimelineProvider.
func (s *StateService) SelectLesson(ctx context.Context, ownerID string, index int) (*domain.TimelineState, error) {
	if s.timelines == nil {
		return nil, errNoDriver
	}
	return s.timelines.SelectIndex(ctx, ownerID, index)
}

// Ensure StateService implements TimelineProvider.
var _ ports.TimelineProvider = (*StateService)(nil)
