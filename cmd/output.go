package cmd

import (
	"time"

	"github.com/xvierd/timeline-cli/internal/domain"
)

// lessonView is the structured output form of one lesson slot.
type lessonView struct {
	Index   int    `json:"index" yaml:"index"`
	Period  int    `json:"period" yaml:"period"`
	Subject string `json:"subject" yaml:"subject"`
	Start   string `json:"start" yaml:"start"`
	End     string `json:"end" yaml:"end"`
	Room    string `json:"room,omitempty" yaml:"room,omitempty"`
	Teacher string `json:"teacher,omitempty" yaml:"teacher,omitempty"`
}

// timelineView is the structured output form of an owner.
type timelineView struct {
	OwnerID      string        `json:"owner_id" yaml:"owner_id"`
	Label        string        `json:"label" yaml:"label"`
	Status       string        `json:"status" yaml:"status"`
	Account      string        `json:"account,omitempty" yaml:"account,omitempty"`
	Day          string        `json:"day,omitempty" yaml:"day,omitempty"`
	CurrentIndex int           `json:"current_index" yaml:"current_index"`
	Current      *lessonView   `json:"current_lesson" yaml:"current_lesson"`
	Lessons      []*lessonView `json:"lessons,omitempty" yaml:"lessons,omitempty"`
	LastError    string        `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	UpdatedAt    string        `json:"updated_at" yaml:"updated_at"`
}

// eventView is the structured output form of a pending wake-up.
type eventView struct {
	ID          string `json:"id" yaml:"id"`
	Kind        string `json:"kind" yaml:"kind"`
	TargetIndex *int   `json:"target_index,omitempty" yaml:"target_index,omitempty"`
	FireAt      string `json:"fire_at" yaml:"fire_at"`
}

func newLessonView(i int, l *domain.Lesson) *lessonView {
	return &lessonView{
		Index:   i,
		Period:  l.Period,
		Subject: l.ShortName,
		Start:   l.Start.String(),
		End:     l.End.String(),
		Room:    l.Room,
		Teacher: l.Teacher,
	}
}

func newTimelineView(state *domain.TimelineState, withLessons bool) timelineView {
	v := timelineView{
		OwnerID:      state.OwnerID,
		Label:        state.Label,
		Status:       string(state.Status),
		CurrentIndex: state.CurrentIndex,
		LastError:    state.LastError,
		UpdatedAt:    state.UpdatedAt.Format(time.RFC3339),
	}
	if state.Credentials != nil {
		v.Account = state.Credentials.DisplayName()
	}
	if len(state.Lessons) > 0 {
		v.Day = state.Day.Format("2006-01-02")
	}
	if l := state.CurrentLesson(); l != nil && state.Status == domain.StatusReady {
		v.Current = newLessonView(state.CurrentIndex, l)
	}
	if withLessons {
		for i, l := range state.Lessons {
			if l == nil {
				continue
			}
			v.Lessons = append(v.Lessons, newLessonView(i, l))
		}
	}
	return v
}

func newEventViews(events []domain.ScheduledEvent, loc *time.Location) []eventView {
	views := make([]eventView, 0, len(events))
	for _, ev := range events {
		v := eventView{
			ID:     ev.ID,
			Kind:   string(ev.Kind),
			FireAt: ev.FireAt.In(loc).Format(time.RFC3339),
		}
		if ev.Kind == domain.EventAdvanceIndex {
			target := ev.TargetIndex
			v.TargetIndex = &target
		}
		views = append(views, v)
	}
	return views
}
