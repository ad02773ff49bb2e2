package domain

import (
	"fmt"
	"time"
)

// TimelineStatus represents the load state of an owner's timeline.
type TimelineStatus string

const (
	StatusUninitialized TimelineStatus = "uninitialized"
	StatusLoading       TimelineStatus = "loading"
	StatusReady         TimelineStatus = "ready"
	StatusError         TimelineStatus = "error"
)

// Credentials identify the account an owner's timetable is fetched for.
// The password never lives here; it belongs to the secret store.
type Credentials struct {
	Username  string `json:"username" yaml:"username"`
	UserID    string `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	FirstName string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
}

// DisplayName returns "First Last", falling back to the username.
func (c Credentials) DisplayName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	default:
		return c.Username
	}
}

// Tokens are the result of a successful login. They are opaque to the
// scheduler and only handed back to the fetcher.
type Tokens struct {
	AccessToken string
	Origin      string
	UserID      string
	FirstName   string
	LastName    string
}

// TimelineState is everything persisted for one owner.
type TimelineState struct {
	OwnerID      string          `json:"owner_id" yaml:"owner_id"`
	Label        string          `json:"label" yaml:"label"`
	Lessons      DisplaySequence `json:"lessons" yaml:"lessons"`
	CurrentIndex int             `json:"current_index" yaml:"current_index"`
	Day          time.Time       `json:"day" yaml:"day"`
	Credentials  *Credentials    `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Status       TimelineStatus  `json:"status" yaml:"status"`
	LastError    string          `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	CreatedAt    time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" yaml:"updated_at"`
}

// NewTimelineState creates an uninitialized owner with a fresh id.
func NewTimelineState(label string, now time.Time) (*TimelineState, error) {
	if label == "" {
		return nil, ErrEmptyLabel
	}
	return &TimelineState{
		OwnerID:   newID(),
		Label:     label,
		Status:    StatusUninitialized,
		Day:       DayOf(now),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasCredentials reports whether the owner has logged in.
func (s *TimelineState) HasCredentials() bool {
	return s.Credentials != nil && s.Credentials.Username != ""
}

// CurrentLesson returns the lesson at the current index, or nil.
func (s *TimelineState) CurrentLesson() *Lesson {
	if s.Lessons.IsEmptyAt(s.CurrentIndex) {
		return nil
	}
	return s.Lessons[s.CurrentIndex]
}

// CanTransition reports whether the status machine allows from -> to.
func CanTransition(from, to TimelineStatus) bool {
	switch from {
	case StatusUninitialized:
		return to == StatusLoading
	case StatusLoading:
		return to == StatusReady || to == StatusError
	case StatusReady:
		return to == StatusLoading || to == StatusReady || to == StatusError
	case StatusError:
		return to == StatusLoading
	default:
		return false
	}
}

func (s *TimelineState) transition(to TimelineStatus) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	return nil
}

// SetCredentials stores login details and moves an uninitialized owner to loading.
func (s *TimelineState) SetCredentials(c Credentials, now time.Time) error {
	s.Credentials = &c
	s.UpdatedAt = now
	if s.Status == StatusLoading {
		return nil
	}
	return s.transition(StatusLoading)
}

// BeginLoading marks a refresh cycle as started.
func (s *TimelineState) BeginLoading() error {
	if s.Status == StatusLoading {
		return nil
	}
	return s.transition(StatusLoading)
}

// Replace installs a freshly fetched day.
func (s *TimelineState) Replace(day time.Time, seq DisplaySequence, index int, now time.Time) error {
	if seq.IsEmptyAt(index) {
		return fmt.Errorf("%w: index %d not a lesson in a sequence of %d", ErrStaleEvent, index, len(seq))
	}
	if err := s.transition(StatusReady); err != nil {
		return err
	}
	s.Day = DayOf(day)
	s.Lessons = seq
	s.CurrentIndex = index
	s.LastError = ""
	s.UpdatedAt = now
	return nil
}

// Fail records a failed refresh. The previous lessons are kept so the
// caller can decide whether to show them.
func (s *TimelineState) Fail(cause error, now time.Time) error {
	if err := s.transition(StatusError); err != nil {
		return err
	}
	if cause != nil {
		s.LastError = cause.Error()
	}
	s.UpdatedAt = now
	return nil
}

// SetIndex moves the current index. It refuses positions that are out of
// range or point at a free period.
func (s *TimelineState) SetIndex(i int) error {
	if s.Lessons.IsEmptyAt(i) {
		return fmt.Errorf("%w: index %d", ErrStaleEvent, i)
	}
	s.CurrentIndex = i
	return nil
}

// StatusLabel returns a human-readable label for the timeline status.
func StatusLabel(status TimelineStatus) string {
	switch status {
	case StatusUninitialized:
		return "No credentials"
	case StatusLoading:
		return "Loading"
	case StatusReady:
		return "Ready"
	case StatusError:
		return "Unable to load"
	default:
		return "Unknown"
	}
}
