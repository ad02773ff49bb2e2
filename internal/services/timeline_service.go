package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/logging"
	"github.com/xvierd/timeline-cli/internal/ports"
	"golang.org/x/sync/errgroup"
)

// ErrSuperseded is returned by a refresh cycle that was cancelled because a
// newer cycle for the same owner started.
var ErrSuperseded = errors.New("refresh superseded by a newer cycle")

// RefreshReason records what triggered a refresh cycle.
type RefreshReason string

const (
	ReasonManual    RefreshReason = "manual"
	ReasonScheduled RefreshReason = "scheduled"
	ReasonStartup   RefreshReason = "startup"
	ReasonResync    RefreshReason = "resync"
	ReasonLogin     RefreshReason = "login"
)

// TimelineServiceConfig contains configuration for the scheduling driver.
type TimelineServiceConfig struct {
	// MaxAdvanceDays bounds the day search of one refresh.
	// Default: 14
	MaxAdvanceDays int

	// Location is the timezone lessons are interpreted in.
	// Default: time.Local
	Location *time.Location

	// PresentQueueSize is the number of presentations buffered for the presenter.
	// Default: 64
	PresentQueueSize int

	// MaxConcurrentRefreshes limits RefreshAll fan-out.
	// Default: 4
	MaxConcurrentRefreshes int

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// DefaultTimelineServiceConfig returns sensible defaults.
func DefaultTimelineServiceConfig() TimelineServiceConfig {
	return TimelineServiceConfig{
		MaxAdvanceDays:         DefaultMaxAdvanceDays,
		Location:               time.Local,
		PresentQueueSize:       64,
		MaxConcurrentRefreshes: 4,
		Now:                    time.Now,
	}
}

// ownerCycle serializes refresh cycles of one owner. gen identifies the
// most recently requested cycle; older ones give up.
type ownerCycle struct {
	lock   sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// TimelineService drives refresh cycles, applies index advances and keeps
// each owner's wake-ups in step with its persisted state.
type TimelineService struct {
	config   TimelineServiceConfig
	states   ports.StateRepository
	provider ports.TimetableProvider
	secrets  ports.SecretStore
	timer    ports.Timer
	advance  *DayAdvance
	queue    *presentQueue
	logger   zerolog.Logger

	mu     sync.Mutex
	cycles map[string]*ownerCycle
}

// NewTimelineService creates the scheduling driver. A nil presenter discards
// presentations.
func NewTimelineService(
	states ports.StateRepository,
	provider ports.TimetableProvider,
	secrets ports.SecretStore,
	timer ports.Timer,
	presenter ports.Presenter,
	config TimelineServiceConfig,
) *TimelineService {
	defaults := DefaultTimelineServiceConfig()
	if config.MaxAdvanceDays <= 0 {
		config.MaxAdvanceDays = defaults.MaxAdvanceDays
	}
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.PresentQueueSize <= 0 {
		config.PresentQueueSize = defaults.PresentQueueSize
	}
	if config.MaxConcurrentRefreshes <= 0 {
		config.MaxConcurrentRefreshes = defaults.MaxConcurrentRefreshes
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if presenter == nil {
		presenter = noopPresenter{}
	}

	logger := logging.Component("driver")

	return &TimelineService{
		config:   config,
		states:   states,
		provider: provider,
		secrets:  secrets,
		timer:    timer,
		advance:  NewDayAdvance(config.MaxAdvanceDays, config.Now),
		queue:    newPresentQueue(presenter, config.PresentQueueSize, logger),
		logger:   logger,
		cycles:   make(map[string]*ownerCycle),
	}
}

// Close drains pending presentations.
func (s *TimelineService) Close() {
	s.queue.close()
}

// Refresh runs one refresh cycle for an owner. A newer Refresh or Remove of
// the same owner cancels this one, which then returns ErrSuperseded without
// writing anything. On a fetch failure the owner moves to the error status,
// all its wake-ups are cancelled and the cause is returned with the state.
func (s *TimelineService) Refresh(ctx context.Context, ownerID string, reason RefreshReason) (*domain.TimelineState, error) {
	logger := logging.WithOwner(s.logger, ownerID).With().Str("reason", string(reason)).Logger()

	cycleCtx, current, release := s.acquire(ctx, ownerID)
	defer release()
	if !current() {
		return nil, ErrSuperseded
	}

	state, err := s.states.Get(cycleCtx, ownerID)
	if errors.Is(err, domain.ErrOwnerNotFound) && reason == ReasonScheduled {
		logger.Debug().Msg("refresh fired for removed owner")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.normalize(state)

	if !state.HasCredentials() {
		return state, domain.ErrNotAuthenticated
	}

	loading := *state
	if err := loading.BeginLoading(); err == nil {
		s.queue.push(ownerID, &loading)
	}

	now := s.clock()
	usable, err := s.fetchUsableDay(cycleCtx, state, reason, now)
	if err != nil {
		if cycleCtx.Err() != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrSuperseded
		}
		return s.fail(ctx, ownerID, err, logger)
	}

	if !current() {
		return nil, ErrSuperseded
	}

	index := domain.CurrentIndexAt(usable.Day, usable.Lessons, usable.InitialIndex, now)
	events, err := Plan(ownerID, usable.Day, usable.Lessons, now)
	if err != nil {
		return s.fail(ctx, ownerID, err, logger)
	}

	if err := s.register(ctx, ownerID, events); err != nil {
		return s.fail(ctx, ownerID, err, logger)
	}

	updated, err := s.states.Update(ctx, ownerID, func(st *domain.TimelineState) error {
		s.normalize(st)
		if err := st.BeginLoading(); err != nil {
			return err
		}
		return st.Replace(usable.Day, usable.Lessons, index, s.clock())
	})
	if err != nil {
		if cancelErr := s.timer.CancelAll(ctx, ownerID); cancelErr != nil {
			logger.Error().Err(cancelErr).Msg("failed to roll back scheduled events")
		}
		return nil, fmt.Errorf("failed to save timeline: %w", err)
	}
	s.normalize(updated)

	logger.Info().
		Str("day", usable.Day.Format(time.DateOnly)).
		Int("attempts", usable.Attempts).
		Int("lessons", usable.Lessons.LessonCount()).
		Int("index", index).
		Int("events", len(events)).
		Msg("timeline refreshed")

	s.queue.push(ownerID, updated)
	return updated, nil
}

// ApplyAdvance moves the current index when an AdvanceIndex event fires.
// Events that no longer match the stored timeline are ignored.
func (s *TimelineService) ApplyAdvance(ctx context.Context, ev domain.ScheduledEvent) error {
	logger := logging.WithOwner(s.logger, ev.OwnerID)

	updated, err := s.states.Update(ctx, ev.OwnerID, func(st *domain.TimelineState) error {
		s.normalize(st)
		if st.Status != domain.StatusReady {
			return fmt.Errorf("%w: timeline is %s", domain.ErrStaleEvent, st.Status)
		}
		if eventDay := domain.DayOf(ev.FireAt.In(s.config.Location)); !eventDay.Equal(st.Day) {
			return fmt.Errorf("%w: event for %s, timeline on %s",
				domain.ErrStaleEvent, eventDay.Format(time.DateOnly), st.Day.Format(time.DateOnly))
		}
		return st.SetIndex(ev.TargetIndex)
	})
	switch {
	case errors.Is(err, domain.ErrStaleEvent), errors.Is(err, domain.ErrOwnerNotFound):
		logger.Debug().Err(err).Int("target", ev.TargetIndex).Msg("ignoring stale advance")
		return nil
	case err != nil:
		return fmt.Errorf("failed to apply advance: %w", err)
	}
	s.normalize(updated)

	logger.Debug().Int("index", updated.CurrentIndex).Msg("index advanced")
	s.queue.push(ev.OwnerID, updated)
	return nil
}

// SelectIndex moves the current index on explicit user request. Unlike a
// fired event, a selection of a free or missing slot is reported.
func (s *TimelineService) SelectIndex(ctx context.Context, ownerID string, index int) (*domain.TimelineState, error) {
	updated, err := s.states.Update(ctx, ownerID, func(st *domain.TimelineState) error {
		s.normalize(st)
		return st.SetIndex(index)
	})
	if err != nil {
		return nil, err
	}
	s.normalize(updated)

	s.queue.push(ownerID, updated)
	return updated, nil
}

// HandleEvent dispatches a fired timer event. It satisfies ports.EventHandler.
func (s *TimelineService) HandleEvent(ctx context.Context, ev domain.ScheduledEvent) {
	logger := logging.WithOwner(s.logger, ev.OwnerID)

	switch ev.Kind {
	case domain.EventRefresh:
		_, err := s.Refresh(ctx, ev.OwnerID, ReasonScheduled)
		if err != nil && !errors.Is(err, ErrSuperseded) && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("scheduled refresh failed")
		}
	case domain.EventAdvanceIndex:
		if err := s.ApplyAdvance(ctx, ev); err != nil {
			logger.Error().Err(err).Msg("advance failed")
		}
	default:
		logger.Warn().Str("kind", string(ev.Kind)).Msg("unknown event kind")
	}
}

// Remove cancels every wake-up of an owner and deletes its state and password.
func (s *TimelineService) Remove(ctx context.Context, ownerID string) error {
	_, _, release := s.acquire(ctx, ownerID)
	defer release()

	if err := s.timer.CancelAll(ctx, ownerID); err != nil {
		return fmt.Errorf("failed to cancel events: %w", err)
	}

	if _, err := s.states.Get(ctx, ownerID); err != nil {
		return err
	}

	if err := s.states.Delete(ctx, ownerID); err != nil {
		return err
	}

	if err := s.secrets.DeletePassword(ctx, ownerID); err != nil {
		return fmt.Errorf("failed to delete password: %w", err)
	}

	s.mu.Lock()
	delete(s.cycles, ownerID)
	s.mu.Unlock()

	logger := logging.WithOwner(s.logger, ownerID)
	logger.Info().Msg("owner removed")
	return nil
}

// RefreshAll refreshes every owner that has credentials. Owners run
// concurrently; their failures are joined.
func (s *TimelineService) RefreshAll(ctx context.Context, reason RefreshReason) error {
	states, err := s.states.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list timelines: %w", err)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(s.config.MaxConcurrentRefreshes)

	for _, st := range states {
		if !st.HasCredentials() {
			continue
		}
		ownerID, label := st.OwnerID, st.Label
		g.Go(func() error {
			_, err := s.Refresh(ctx, ownerID, reason)
			if err != nil && !errors.Is(err, ErrSuperseded) {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", label, err))
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

// StartDay returns the first day a refresh of state should look at.
func (s *TimelineService) StartDay(state *domain.TimelineState, reason RefreshReason, now time.Time) time.Time {
	today := domain.DayOf(now)

	start := state.Day
	if start.IsZero() {
		start = today
	}
	start = domain.DateIn(start, s.config.Location)

	exhausted := len(state.Lessons) > 0 && !domain.IsUsable(start, state.Lessons, now)
	if reason == ReasonScheduled || exhausted {
		start = domain.NextDay(start)
	}
	if start.Before(today) {
		start = today
	}
	return start
}

func (s *TimelineService) fetchUsableDay(ctx context.Context, state *domain.TimelineState, reason RefreshReason, now time.Time) (*UsableDay, error) {
	password, err := s.secrets.Password(ctx, state.OwnerID)
	if errors.Is(err, domain.ErrSecretNotFound) {
		return nil, fmt.Errorf("%w: no stored password", domain.ErrNotAuthenticated)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	tokens, err := s.provider.Login(ctx, state.Credentials.Username, password)
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}

	start := s.StartDay(state, reason, now)
	return s.advance.FetchUsableDay(ctx, start, func(ctx context.Context, day time.Time) ([]domain.Lesson, error) {
		return s.provider.FetchDay(ctx, tokens, day)
	})
}

// register replaces the owner's pending wake-ups with events.
func (s *TimelineService) register(ctx context.Context, ownerID string, events []domain.ScheduledEvent) error {
	if err := s.timer.CancelAll(ctx, ownerID); err != nil {
		return fmt.Errorf("failed to cancel previous events: %w", err)
	}

	for _, ev := range events {
		var err error
		if ev.Kind == domain.EventRefresh {
			_, err = s.timer.ScheduleReplacing(ctx, ev)
		} else {
			_, err = s.timer.ScheduleAdditional(ctx, ev)
		}
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", ev, err)
		}
	}

	return nil
}

func (s *TimelineService) fail(ctx context.Context, ownerID string, cause error, logger zerolog.Logger) (*domain.TimelineState, error) {
	logger.Warn().Err(cause).Msg("refresh failed")

	if err := s.timer.CancelAll(ctx, ownerID); err != nil {
		logger.Error().Err(err).Msg("failed to cancel events")
	}

	updated, err := s.states.Update(ctx, ownerID, func(st *domain.TimelineState) error {
		s.normalize(st)
		if err := st.BeginLoading(); err != nil {
			return err
		}
		return st.Fail(cause, s.clock())
	})
	if err != nil {
		if !errors.Is(err, domain.ErrOwnerNotFound) {
			logger.Error().Err(err).Msg("failed to record refresh error")
		}
		return nil, cause
	}
	s.normalize(updated)

	s.queue.push(ownerID, updated)
	return updated, cause
}

// acquire cancels the owner's in-flight cycle and takes the owner lock.
// current reports whether no newer cycle has been requested since.
func (s *TimelineService) acquire(ctx context.Context, ownerID string) (context.Context, func() bool, func()) {
	s.mu.Lock()
	c, ok := s.cycles[ownerID]
	if !ok {
		c = &ownerCycle{}
		s.cycles[ownerID] = c
	}
	if c.cancel != nil {
		c.cancel()
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	c.gen++
	gen := c.gen
	c.cancel = cancel
	s.mu.Unlock()

	c.lock.Lock()

	current := func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return c.gen == gen
	}
	release := func() {
		s.mu.Lock()
		if c.gen == gen {
			c.cancel = nil
		}
		s.mu.Unlock()
		cancel()
		c.lock.Unlock()
	}
	return cycleCtx, current, release
}

func (s *TimelineService) normalize(state *domain.TimelineState) {
	if state != nil && !state.Day.IsZero() {
		state.Day = domain.DateIn(state.Day, s.config.Location)
	}
}

func (s *TimelineService) clock() time.Time {
	return s.config.Now().In(s.config.Location)
}

type noopPresenter struct{}

func (noopPresenter) Present(string, *domain.TimelineState) {}
