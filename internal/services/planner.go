package services

import (
	"sort"
	"time"

	"github.com/xvierd/timeline-cli/internal/domain"
)

// Plan computes the wake-ups for one loaded day: an AdvanceIndex at the end
// of every lesson that has a successor, and a Refresh at the end of the last
// lesson. Advance boundaries at or before now are dropped; a Refresh already
// in the past is moved to now. Events come back sorted by Before.
func Plan(ownerID string, day time.Time, seq domain.DisplaySequence, now time.Time) ([]domain.ScheduledEvent, error) {
	indexes := seq.LessonIndexes()
	if len(indexes) == 0 {
		return nil, domain.ErrEmptyInput
	}

	events := make([]domain.ScheduledEvent, 0, len(indexes))

	for k := 0; k+1 < len(indexes); k++ {
		at := seq[indexes[k]].EndAt(day)
		if !at.After(now) {
			continue
		}
		events = append(events, domain.NewAdvanceEvent(ownerID, indexes[k+1], at))
	}

	refreshAt := seq[indexes[len(indexes)-1]].EndAt(day)
	if !refreshAt.After(now) {
		refreshAt = now
	}
	events = append(events, domain.NewRefreshEvent(ownerID, refreshAt))

	sort.SliceStable(events, func(i, j int) bool { return events[i].Before(events[j]) })

	return events, nil
}
