package scheduler

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
)

// dispatcher runs handlers off the scheduler goroutine. Each owner gets a
// lane that handles its events one at a time in firing order; lanes of
// different owners run concurrently.
type dispatcher struct {
	repo    ports.EventRepository
	handler ports.EventHandler
	logger  zerolog.Logger

	mu    sync.Mutex
	lanes map[string][]domain.ScheduledEvent
	wg    sync.WaitGroup
}

func newDispatcher(repo ports.EventRepository, handler ports.EventHandler, logger zerolog.Logger) *dispatcher {
	return &dispatcher{
		repo:    repo,
		handler: handler,
		logger:  logger,
		lanes:   make(map[string][]domain.ScheduledEvent),
	}
}

func (d *dispatcher) dispatch(ctx context.Context, ev domain.ScheduledEvent) {
	d.mu.Lock()
	queue, running := d.lanes[ev.OwnerID]
	d.lanes[ev.OwnerID] = append(queue, ev)
	d.mu.Unlock()

	if running {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.drain(ctx, ev.OwnerID)
	}()
}

func (d *dispatcher) drain(ctx context.Context, ownerID string) {
	for {
		d.mu.Lock()
		queue := d.lanes[ownerID]
		if len(queue) == 0 || ctx.Err() != nil {
			delete(d.lanes, ownerID)
			d.mu.Unlock()
			return
		}
		ev := queue[0]
		d.lanes[ownerID] = queue[1:]
		d.mu.Unlock()

		d.fire(ctx, ev)
	}
}

// fire takes ev out of the repository and runs the handler. An event that
// is no longer pending was cancelled after it was popped and is skipped.
func (d *dispatcher) fire(ctx context.Context, ev domain.ScheduledEvent) {
	logger := d.logger.With().Str("owner_id", ev.OwnerID).Str("event_id", ev.ID).Logger()

	taken, err := d.repo.Take(ctx, ev.ID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to take event")
		return
	}
	if !taken {
		logger.Debug().Str("key", ev.Key()).Msg("event cancelled before firing")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("event handler panicked")
		}
	}()

	logger.Debug().Str("event", ev.String()).Msg("firing event")
	d.handler(ctx, ev)
}

func (d *dispatcher) wait() {
	d.wg.Wait()
}
