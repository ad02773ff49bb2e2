package services

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
)

type presentation struct {
	ownerID string
	state   domain.TimelineState
}

// presentQueue hands states to a Presenter from a single goroutine, so
// presentations keep their order and callers never wait on the UI.
type presentQueue struct {
	presenter ports.Presenter
	logger    zerolog.Logger

	mu     sync.Mutex
	closed bool
	ch     chan presentation
	done   chan struct{}
}

func newPresentQueue(presenter ports.Presenter, size int, logger zerolog.Logger) *presentQueue {
	q := &presentQueue{
		presenter: presenter,
		logger:    logger,
		ch:        make(chan presentation, size),
		done:      make(chan struct{}),
	}
	go q.run()
	return q
}

// push enqueues a copy of state. When the queue is full the presentation is
// dropped; the next one supersedes it anyway.
func (q *presentQueue) push(ownerID string, state *domain.TimelineState) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || state == nil {
		return
	}

	select {
	case q.ch <- presentation{ownerID: ownerID, state: *state}:
	default:
		q.logger.Warn().Str("owner_id", ownerID).Msg("presentation queue full, dropping update")
	}
}

// close stops accepting work and waits for queued presentations to drain.
func (q *presentQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
	<-q.done
}

func (q *presentQueue) run() {
	defer close(q.done)
	for p := range q.ch {
		q.deliver(p)
	}
}

func (q *presentQueue) deliver(p presentation) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().Interface("panic", r).Str("owner_id", p.ownerID).Msg("presenter panicked")
		}
	}()
	q.presenter.Present(p.ownerID, &p.state)
}
