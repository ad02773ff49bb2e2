package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lesson(period int, name, start, end string) Lesson {
	return Lesson{
		Period:    period,
		ShortName: name,
		Start:     MustClockTime(start),
		End:       MustClockTime(end),
	}
}

// shape renders a sequence as subject names with "-" for free periods.
func shape(seq DisplaySequence) []string {
	out := make([]string, len(seq))
	for i, l := range seq {
		if l == nil {
			out[i] = "-"
			continue
		}
		out[i] = l.ShortName
	}
	return out
}

func TestOrder(t *testing.T) {
	tests := []struct {
		name        string
		lessons     []Lesson
		wantShape   []string
		wantInitial int
	}{
		{
			name: "sorted and gapped",
			lessons: []Lesson{
				lesson(4, "Math", "10:40", "11:25"),
				lesson(2, "Eng", "08:55", "09:40"),
			},
			wantShape:   []string{"-", "Eng", "-", "Math"},
			wantInitial: 1,
		},
		{
			name:        "single first period",
			lessons:     []Lesson{lesson(1, "Bio", "08:00", "08:45")},
			wantShape:   []string{"Bio"},
			wantInitial: 0,
		},
		{
			name: "contiguous",
			lessons: []Lesson{
				lesson(3, "C", "10:00", "10:45"),
				lesson(1, "A", "08:00", "08:45"),
				lesson(2, "B", "09:00", "09:45"),
			},
			wantShape:   []string{"A", "B", "C"},
			wantInitial: 0,
		},
		{
			name:        "late single lesson",
			lessons:     []Lesson{lesson(6, "Art", "13:00", "13:45")},
			wantShape:   []string{"-", "-", "-", "-", "-", "Art"},
			wantInitial: 5,
		},
		{
			name: "duplicate period keeps first",
			lessons: []Lesson{
				lesson(2, "Chem", "09:00", "09:45"),
				lesson(2, "Phys", "09:00", "09:45"),
				lesson(3, "Hist", "10:00", "10:45"),
			},
			wantShape:   []string{"-", "Chem", "Hist"},
			wantInitial: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, initial, err := Order(tt.lessons)
			require.NoError(t, err)
			assert.Equal(t, tt.wantShape, shape(seq))
			assert.Equal(t, tt.wantInitial, initial)

			// Positional invariant: slot i holds period i+1.
			for i, l := range seq {
				if l != nil {
					assert.Equal(t, i+1, l.Period)
				}
			}
		})
	}
}

func TestOrder_Errors(t *testing.T) {
	_, _, err := Order(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, _, err = Order([]Lesson{lesson(0, "Zero", "08:00", "08:45")})
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, _, err = Order([]Lesson{lesson(2, "Ok", "08:00", "08:45"), lesson(-1, "Neg", "09:00", "09:45")})
	assert.True(t, errors.Is(err, ErrInvalidPeriod))
}

func TestOrder_DoesNotMutateInput(t *testing.T) {
	in := []Lesson{lesson(3, "C", "10:00", "10:45"), lesson(1, "A", "08:00", "08:45")}
	_, _, err := Order(in)
	require.NoError(t, err)
	assert.Equal(t, 3, in[0].Period)
	assert.Equal(t, 1, in[1].Period)
}

func TestIsUsable(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	seq, _, err := Order([]Lesson{
		lesson(1, "A", "08:00", "08:45"),
		lesson(3, "C", "10:00", "14:00"),
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		seq  DisplaySequence
		now  time.Time
		want bool
	}{
		{name: "morning", seq: seq, now: day.Add(7 * time.Hour), want: true},
		{name: "before last end", seq: seq, now: day.Add(13*time.Hour + 59*time.Minute), want: true},
		{name: "exactly at last end", seq: seq, now: day.Add(14 * time.Hour), want: false},
		{name: "after last end", seq: seq, now: day.Add(15 * time.Hour), want: false},
		{name: "empty sequence", seq: DisplaySequence{}, now: day, want: false},
		{name: "only free slots", seq: DisplaySequence{nil, nil}, now: day, want: false},
		{name: "previous day evening", seq: seq, now: day.Add(-2 * time.Hour), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUsable(day, tt.seq, tt.now))
		})
	}
}

func TestCurrentIndexAt(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	seq, initial, err := Order([]Lesson{
		lesson(2, "B", "09:00", "09:45"),
		lesson(3, "C", "10:00", "10:45"),
		lesson(5, "E", "12:00", "12:45"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, initial)

	at := func(hhmm string) time.Time { return MustClockTime(hhmm).At(day) }

	assert.Equal(t, 1, CurrentIndexAt(day, seq, initial, at("07:00")))
	assert.Equal(t, 1, CurrentIndexAt(day, seq, initial, at("09:30")))
	assert.Equal(t, 2, CurrentIndexAt(day, seq, initial, at("09:45")))
	assert.Equal(t, 4, CurrentIndexAt(day, seq, initial, at("11:00")))
	assert.Equal(t, initial, CurrentIndexAt(day, seq, initial, at("13:00")))
}

func TestDisplaySequence_Helpers(t *testing.T) {
	seq, _, err := Order([]Lesson{lesson(2, "B", "09:00", "09:45"), lesson(4, "D", "11:00", "11:45")})
	require.NoError(t, err)

	assert.Equal(t, 2, seq.LessonCount())
	assert.Equal(t, []int{1, 3}, seq.LessonIndexes())
	assert.Equal(t, "D", seq.Last().ShortName)
	assert.True(t, seq.IsEmptyAt(0))
	assert.True(t, seq.IsEmptyAt(4))
	assert.True(t, seq.IsEmptyAt(-1))
	assert.False(t, seq.IsEmptyAt(1))

	again, _, err := Order([]Lesson{lesson(4, "D", "11:00", "11:45"), lesson(2, "B", "09:00", "09:45")})
	require.NoError(t, err)
	assert.True(t, seq.Equal(again))
	assert.False(t, seq.Equal(again[:2]))
	assert.Nil(t, DisplaySequence{nil}.Last())
}

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{in: "08:15", want: 8*60 + 15},
		{in: "8:05", want: 8*60 + 5},
		{in: "23:59:30", want: 23*60 + 59},
		{in: "00:00", want: 0},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClockTime(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClockTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockTime_At(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	day := time.Date(2024, 3, 4, 17, 30, 0, 0, loc)

	got := MustClockTime("09:40").At(day)
	assert.Equal(t, time.Date(2024, 3, 4, 9, 40, 0, 0, loc), got)
	assert.Equal(t, "09:40", MustClockTime("09:40").String())
}

func TestDateIn(t *testing.T) {
	stored := time.Date(2024, 10, 27, 0, 0, 0, 0, time.FixedZone("", 7200))
	loc := time.FixedZone("X", 3600)
	got := DateIn(stored, loc)
	assert.Equal(t, time.Date(2024, 10, 27, 0, 0, 0, 0, loc), got)
	assert.Equal(t, time.Date(2024, 10, 28, 0, 0, 0, 0, loc), NextDay(got))
}
