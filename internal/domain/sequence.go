package domain

import (
	"fmt"
	"sort"
	"time"
)

// DisplaySequence is the dense, positional view of a day: index i holds the
// lesson of period i+1, or nil when that period is free.
type DisplaySequence []*Lesson

// Order turns a sparse lesson list into a DisplaySequence plus the index of
// the first scheduled lesson.
//
// Lessons are sorted by period; for each lesson, period-previous-1 empty
// slots are inserted before it, with previous starting at 0. When the
// provider reports the same period twice the first lesson wins, so slot i
// always belongs to period i+1.
func Order(lessons []Lesson) (DisplaySequence, int, error) {
	if len(lessons) == 0 {
		return nil, 0, ErrEmptyInput
	}

	sorted := make([]Lesson, len(lessons))
	copy(sorted, lessons)
	for _, l := range sorted {
		if l.Period < 1 {
			return nil, 0, fmt.Errorf("%w: got %d for %q", ErrInvalidPeriod, l.Period, l.ShortName)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Period < sorted[j].Period })

	initial := sorted[0].Period - 1
	if initial < 0 {
		initial = 0
	}

	seq := make(DisplaySequence, 0, sorted[len(sorted)-1].Period)
	previous := 0
	for i := range sorted {
		lesson := sorted[i]
		if lesson.Period == previous {
			continue
		}
		for gap := lesson.Period - previous - 1; gap > 0; gap-- {
			seq = append(seq, nil)
		}
		seq = append(seq, &lesson)
		previous = lesson.Period
	}

	return seq, initial, nil
}

// LessonCount returns the number of non-empty slots.
func (s DisplaySequence) LessonCount() int {
	n := 0
	for _, l := range s {
		if l != nil {
			n++
		}
	}
	return n
}

// InRange reports whether i is a valid position.
func (s DisplaySequence) InRange(i int) bool {
	return i >= 0 && i < len(s)
}

// IsEmptyAt reports whether slot i is out of range or free.
func (s DisplaySequence) IsEmptyAt(i int) bool {
	return !s.InRange(i) || s[i] == nil
}

// LessonIndexes returns the positions of all non-empty slots in order.
func (s DisplaySequence) LessonIndexes() []int {
	idx := make([]int, 0, len(s))
	for i, l := range s {
		if l != nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// Last returns the last non-empty slot, or nil for an empty sequence.
func (s DisplaySequence) Last() *Lesson {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != nil {
			return s[i]
		}
	}
	return nil
}

// Equal reports whether both sequences hold the same lessons in the same slots.
func (s DisplaySequence) Equal(other DisplaySequence) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		a, b := s[i], other[i]
		if (a == nil) != (b == nil) {
			return false
		}
		if a != nil && *a != *b {
			return false
		}
	}
	return true
}

// IsUsable reports whether seq, placed on day, still has a lesson ending
// after now. Empty sequences are never usable.
func IsUsable(day time.Time, seq DisplaySequence, now time.Time) bool {
	last := seq.Last()
	if last == nil {
		return false
	}
	return last.EndAt(day).After(now)
}

// CurrentIndexAt returns the position of the first lesson that has not yet
// ended at now, or initial when every lesson is over or now precedes the day.
func CurrentIndexAt(day time.Time, seq DisplaySequence, initial int, now time.Time) int {
	for i, l := range seq {
		if l == nil {
			continue
		}
		if l.EndAt(day).After(now) {
			if i < initial {
				return initial
			}
			return i
		}
	}
	return initial
}
