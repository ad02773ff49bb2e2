package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/xvierd/timeline-cli/internal/adapters/storage"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
)

func setupTestStorage(t *testing.T) (ports.Storage, func()) {
	store, err := storage.NewMemory()
	if err != nil {
		t.Fatalf("Failed to create test storage: %v", err)
	}
	return store, func() { store.Close() }
}

// fakeProvider serves lessons per date and counts calls.
type fakeProvider struct {
	mu       sync.Mutex
	days     map[string][]domain.Lesson
	loginErr error
	fetchErr error
	logins   int
	fetches  []string

	// block, when set, holds FetchDay until it is closed or ctx ends.
	block   chan struct{}
	waiting int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{days: make(map[string][]domain.Lesson)}
}

func (p *fakeProvider) set(day time.Time, lessons ...domain.Lesson) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.days[day.Format(time.DateOnly)] = lessons
}

func (p *fakeProvider) Login(_ context.Context, username, password string) (*domain.Tokens, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logins++
	if p.loginErr != nil {
		return nil, p.loginErr
	}
	if password == "" {
		return nil, domain.ErrAuth
	}
	return &domain.Tokens{AccessToken: "token-" + username, UserID: "u-" + username, FirstName: "Anna", LastName: "Berg"}, nil
}

func (p *fakeProvider) FetchDay(ctx context.Context, _ *domain.Tokens, day time.Time) ([]domain.Lesson, error) {
	p.mu.Lock()
	block := p.block
	if block != nil {
		p.waiting++
	}
	p.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	key := day.Format(time.DateOnly)
	p.fetches = append(p.fetches, key)
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.days[key], nil
}

func (p *fakeProvider) blocked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiting
}

func (p *fakeProvider) fetchCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fetches)
}

// fakeTimer keeps pending events in memory.
type fakeTimer struct {
	mu      sync.Mutex
	pending map[string]domain.ScheduledEvent
	err     error
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{pending: make(map[string]domain.ScheduledEvent)}
}

func (f *fakeTimer) ScheduleReplacing(_ context.Context, ev domain.ScheduledEvent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.pending[ev.Key()] = ev
	return ev.Key(), nil
}

func (f *fakeTimer) ScheduleAdditional(_ context.Context, ev domain.ScheduledEvent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if _, ok := f.pending[ev.Key()]; !ok {
		f.pending[ev.Key()] = ev
	}
	return ev.Key(), nil
}

func (f *fakeTimer) Cancel(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, handle)
	return nil
}

func (f *fakeTimer) CancelAll(_ context.Context, ownerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, ev := range f.pending {
		if ev.OwnerID == ownerID {
			delete(f.pending, key)
		}
	}
	return nil
}

func (f *fakeTimer) events(ownerID string) []domain.ScheduledEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ScheduledEvent
	for _, ev := range f.pending {
		if ev.OwnerID == ownerID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// recordingPresenter captures presented states.
type recordingPresenter struct {
	mu     sync.Mutex
	states []domain.TimelineState
}

func (p *recordingPresenter) Present(_ string, state *domain.TimelineState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, *state)
}

func (p *recordingPresenter) statuses() []domain.TimelineStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.TimelineStatus, len(p.states))
	for i, st := range p.states {
		out[i] = st.Status
	}
	return out
}

func lesson(period int, subject, start, end string) domain.Lesson {
	return domain.Lesson{
		Period:    period,
		ShortName: subject,
		Start:     domain.MustClockTime(start),
		End:       domain.MustClockTime(end),
	}
}

// monday is 2024-03-04, a regular school day.
func monday(hour, minute int) time.Time {
	return time.Date(2024, 3, 4, hour, minute, 0, 0, time.UTC)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
