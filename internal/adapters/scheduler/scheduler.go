// Package scheduler provides the durable timer behind timeline wake-ups.
//
// Events are written to the event repository first, so they survive
// restarts and are visible to every process sharing the database. While
// started, a single goroutine keeps a min-heap of pending events, sleeps
// until the earliest one (never longer than the max-sleep cap, which also
// absorbs clock steps and system sleep) and hands due events to per-owner
// dispatch lanes. On every wake-up the heap is rebuilt from the repository
// so events scheduled by other processes are picked up.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/logging"
	"github.com/xvierd/timeline-cli/internal/ports"
)

const (
	defaultMaxSleep = 60 * time.Second

	// pastTolerance is how far behind the clock an event may be scheduled.
	pastTolerance = time.Minute
)

// Scheduler errors.
var (
	ErrAlreadyRunning = errors.New("scheduler already running")
	ErrNotRunning     = errors.New("scheduler not running")
	ErrEventInPast    = errors.New("event fire time is in the past")
)

type opKind int

const (
	opAdd opKind = iota
	opRemoveKey
	opRemoveOwner
)

type command struct {
	op    opKind
	event domain.ScheduledEvent
	key   string
}

// Config contains configuration for the scheduler.
type Config struct {
	// MaxSleep caps a single sleep of the scheduler goroutine.
	// Default: 60s
	MaxSleep time.Duration

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// Scheduler implements ports.Timer on top of an EventRepository.
type Scheduler struct {
	repo     ports.EventRepository
	maxSleep time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu       sync.Mutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	cmds     chan command
	done     chan struct{}
	dispatch *dispatcher
}

// Ensure Scheduler implements ports.Timer.
var _ ports.Timer = (*Scheduler)(nil)

// New creates a scheduler. Without Start it only records events, which is
// what short-lived CLI commands need.
func New(repo ports.EventRepository, config Config) *Scheduler {
	if config.MaxSleep <= 0 {
		config.MaxSleep = defaultMaxSleep
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Scheduler{
		repo:     repo,
		maxSleep: config.MaxSleep,
		now:      config.Now,
		logger:   logging.Component("scheduler"),
	}
}

// ScheduleReplacing implements ports.Timer.
func (s *Scheduler) ScheduleReplacing(ctx context.Context, ev domain.ScheduledEvent) (string, error) {
	if err := s.validate(ev); err != nil {
		return "", err
	}
	if err := s.repo.Put(ctx, ev); err != nil {
		return "", err
	}
	s.send(command{op: opAdd, event: ev})
	return ev.Key(), nil
}

// ScheduleAdditional implements ports.Timer.
func (s *Scheduler) ScheduleAdditional(ctx context.Context, ev domain.ScheduledEvent) (string, error) {
	if err := s.validate(ev); err != nil {
		return "", err
	}
	stored, err := s.repo.Append(ctx, ev)
	if err != nil {
		return "", err
	}
	if stored {
		s.send(command{op: opAdd, event: ev})
	}
	return ev.Key(), nil
}

// Cancel implements ports.Timer.
func (s *Scheduler) Cancel(ctx context.Context, handle string) error {
	if _, err := s.repo.DeleteByKey(ctx, handle); err != nil {
		return err
	}
	s.send(command{op: opRemoveKey, key: handle})
	return nil
}

// CancelAll implements ports.Timer.
func (s *Scheduler) CancelAll(ctx context.Context, ownerID string) error {
	if _, err := s.repo.DeleteByOwner(ctx, ownerID); err != nil {
		return err
	}
	s.send(command{op: opRemoveOwner, key: ownerID})
	return nil
}

// Start loads pending events and begins firing them through handler.
// Events whose time passed while nothing was running fire immediately.
func (s *Scheduler) Start(ctx context.Context, handler ports.EventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	pending, err := s.repo.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending events: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cmds = make(chan command, 64)
	s.done = make(chan struct{})
	s.dispatch = newDispatcher(s.repo, handler, s.logger)
	s.running = true

	s.logger.Info().
		Int("pending", len(pending)).
		Dur("max_sleep", s.maxSleep).
		Msg("scheduler starting")

	go s.run(pending)
	return nil
}

// Stop halts the scheduler and waits for running handlers to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.cancel()
	s.running = false
	done, dispatch := s.done, s.dispatch
	s.mu.Unlock()

	<-done
	dispatch.wait()
	s.logger.Info().Msg("scheduler stopped")
	return nil
}

func (s *Scheduler) validate(ev domain.ScheduledEvent) error {
	if ev.OwnerID == "" || ev.ID == "" {
		return fmt.Errorf("event %q is missing an owner or id", ev.Key())
	}
	if ev.FireAt.Before(s.now().Add(-pastTolerance)) {
		return fmt.Errorf("%w: %s", ErrEventInPast, ev)
	}
	return nil
}

func (s *Scheduler) send(cmd command) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx, cmds := s.ctx, s.cmds
	s.mu.Unlock()

	select {
	case cmds <- cmd:
	case <-ctx.Done():
	}
}

// run is the scheduler goroutine; it alone touches the heap.
func (s *Scheduler) run(initial []domain.ScheduledEvent) {
	defer close(s.done)

	h := &eventHeap{}
	heapReset(h, initial)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		dur := s.maxSleep
		if h.Len() > 0 {
			if until := (*h)[0].FireAt.Sub(s.now()); until < dur {
				dur = until
			}
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-s.ctx.Done():
			return

		case cmd := <-s.cmds:
			switch cmd.op {
			case opAdd:
				heapPush(h, cmd.event)
			case opRemoveKey:
				heapRemoveByKey(h, cmd.key)
			case opRemoveOwner:
				heapRemoveByOwner(h, cmd.key)
			}
			timerCh = resetTimer()

		case <-timerCh:
			s.reload(h)
			now := s.now()
			for h.Len() > 0 && !(*h)[0].FireAt.After(now) {
				s.dispatch.dispatch(s.ctx, heapPop(h))
			}
			timerCh = resetTimer()
		}
	}
}

// reload replaces the heap with the repository's pending events. On error
// the in-memory heap is kept.
func (s *Scheduler) reload(h *eventHeap) {
	pending, err := s.repo.Pending(s.ctx)
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("failed to reload pending events")
		}
		return
	}
	heapReset(h, pending)
	heap.Init(h)
}
