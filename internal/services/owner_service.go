package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
)

// minIDPrefix is the shortest id prefix Resolve accepts.
const minIDPrefix = 4

// OwnerService handles owner creation, login and lookup.
type OwnerService struct {
	storage ports.Storage
	secrets ports.SecretStore
	auth    ports.Authenticator
	loc     *time.Location
	now     func() time.Time
}

// NewOwnerService creates a new owner service. Passwords go to secrets,
// which may be the storage's own secret store.
func NewOwnerService(storage ports.Storage, secrets ports.SecretStore, auth ports.Authenticator) *OwnerService {
	return &OwnerService{
		storage: storage,
		secrets: secrets,
		auth:    auth,
		loc:     time.Local,
		now:     time.Now,
	}
}

// SetLocation sets the timezone stored days are interpreted in.
func (s *OwnerService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// SetClock replaces the clock, for tests.
func (s *OwnerService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create adds an owner without credentials.
func (s *OwnerService) Create(ctx context.Context, label string) (*domain.TimelineState, error) {
	state, err := domain.NewTimelineState(strings.TrimSpace(label), s.now().In(s.loc))
	if err != nil {
		return nil, err
	}

	if err := s.storage.States().Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save owner: %w", err)
	}

	return state, nil
}

// LoginRequest contains the data to attach an account to an owner.
type LoginRequest struct {
	OwnerID  string
	Username string
	Password string
}

// Login verifies the credentials with the provider, stores the password and
// records the account on the owner, which moves it to loading.
func (s *OwnerService) Login(ctx context.Context, req LoginRequest) (*domain.TimelineState, error) {
	if _, err := s.storage.States().Get(ctx, req.OwnerID); err != nil {
		return nil, err
	}

	tokens, err := s.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}

	if err := s.secrets.SetPassword(ctx, req.OwnerID, req.Password); err != nil {
		return nil, fmt.Errorf("failed to store password: %w", err)
	}

	creds := domain.Credentials{
		Username:  req.Username,
		UserID:    tokens.UserID,
		FirstName: tokens.FirstName,
		LastName:  tokens.LastName,
	}

	updated, err := s.storage.States().Update(ctx, req.OwnerID, func(st *domain.TimelineState) error {
		return st.SetCredentials(creds, s.now().In(s.loc))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}

	s.normalize(updated)
	return updated, nil
}

// Get returns one owner by exact id.
func (s *OwnerService) Get(ctx context.Context, ownerID string) (*domain.TimelineState, error) {
	state, err := s.storage.States().Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.normalize(state)
	return state, nil
}

// List returns all owners.
func (s *OwnerService) List(ctx context.Context) ([]*domain.TimelineState, error) {
	states, err := s.storage.States().List(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range states {
		s.normalize(st)
	}
	return states, nil
}

// Resolve finds an owner by exact id, unique id prefix, exact label or a
// unique fuzzy label match.
func (s *OwnerService) Resolve(ctx context.Context, query string) (*domain.TimelineState, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrOwnerNotFound
	}

	states, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}

	var prefixed, labelled []*domain.TimelineState
	for _, st := range states {
		if st.OwnerID == query {
			return st, nil
		}
		if len(query) >= minIDPrefix && strings.HasPrefix(st.OwnerID, query) {
			prefixed = append(prefixed, st)
		}
		if strings.EqualFold(st.Label, query) {
			labelled = append(labelled, st)
		}
	}

	for _, candidates := range [][]*domain.TimelineState{labelled, prefixed} {
		switch len(candidates) {
		case 0:
		case 1:
			return candidates[0], nil
		default:
			return nil, fmt.Errorf("%w: %q", domain.ErrAmbiguousOwner, query)
		}
	}

	labels := make([]string, len(states))
	for i, st := range states {
		labels[i] = st.Label
	}

	var matched []*domain.TimelineState
	for _, match := range fuzzy.Find(query, labels) {
		matched = append(matched, states[match.Index])
	}

	switch len(matched) {
	case 0:
		return nil, fmt.Errorf("%w: %q", domain.ErrOwnerNotFound, query)
	case 1:
		return matched[0], nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrAmbiguousOwner, query)
	}
}

// PendingEvents returns an owner's scheduled wake-ups.
func (s *OwnerService) PendingEvents(ctx context.Context, ownerID string) ([]domain.ScheduledEvent, error) {
	events, err := s.storage.Events().ForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].FireAt = events[i].FireAt.In(s.loc)
	}
	return events, nil
}

func (s *OwnerService) normalize(state *domain.TimelineState) {
	if state != nil && !state.Day.IsZero() {
		state.Day = domain.DateIn(state.Day, s.loc)
	}
}
