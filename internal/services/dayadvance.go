package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xvierd/timeline-cli/internal/domain"
)

// DefaultMaxAdvanceDays bounds how far ahead DayAdvance searches.
const DefaultMaxAdvanceDays = 14

// FetchFunc returns the raw lessons of one calendar day.
type FetchFunc func(ctx context.Context, day time.Time) ([]domain.Lesson, error)

// UsableDay is the first day found with lessons still ahead of now.
type UsableDay struct {
	Day          time.Time
	Lessons      domain.DisplaySequence
	InitialIndex int
	Attempts     int
}

// DayAdvance walks forward one calendar day at a time until it finds a
// day whose timetable is not yet over.
type DayAdvance struct {
	maxDays int
	now     func() time.Time
}

// NewDayAdvance creates a DayAdvance. maxDays <= 0 selects the default bound;
// a nil clock selects time.Now.
func NewDayAdvance(maxDays int, now func() time.Time) *DayAdvance {
	if maxDays <= 0 {
		maxDays = DefaultMaxAdvanceDays
	}
	if now == nil {
		now = time.Now
	}
	return &DayAdvance{maxDays: maxDays, now: now}
}

// MaxDays returns the configured search bound.
func (d *DayAdvance) MaxDays() int {
	return d.maxDays
}

// FetchUsableDay fetches start, start+1, ... sequentially, at most MaxDays
// times. Days without lessons and days whose last lesson has already ended
// are skipped; any fetch error ends the search immediately.
func (d *DayAdvance) FetchUsableDay(ctx context.Context, start time.Time, fetch FetchFunc) (*UsableDay, error) {
	day := domain.DayOf(start)

	for attempt := 1; attempt <= d.maxDays; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lessons, err := fetch(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", day.Format(time.DateOnly), err)
		}

		seq, initial, err := domain.Order(lessons)
		switch {
		case errors.Is(err, domain.ErrEmptyInput):
			// no lessons that day
		case err != nil:
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrRemoteFormat, day.Format(time.DateOnly), err)
		case domain.IsUsable(day, seq, d.now()):
			return &UsableDay{
				Day:          day,
				Lessons:      seq,
				InitialIndex: initial,
				Attempts:     attempt,
			}, nil
		}

		day = domain.NextDay(day)
	}

	return nil, fmt.Errorf("%w: checked %d days from %s",
		domain.ErrNoUsableDay, d.maxDays, domain.DayOf(start).Format(time.DateOnly))
}
