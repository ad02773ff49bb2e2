package ics

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
	"github.com/xvierd/timeline-cli/internal/domain"
)

// Non-standard properties a timetable feed may carry.
const (
	propertyPeriod  ical.ComponentProperty = "X-PERIOD"
	propertyTeacher ical.ComponentProperty = "X-TEACHER"
)

// vevent is the subset of a VEVENT a lesson is built from.
type vevent struct {
	UID      string
	Summary  string
	Location string
	Teacher  string
	Period   int

	Start time.Time
	End   time.Time

	RawRRule     string
	ExDates      []time.Time
	RecurrenceID *time.Time
	Cancelled    bool
}

// occurrence is one concrete instance of a vevent on a day.
type occurrence struct {
	ev    vevent
	start time.Time
	end   time.Time
}

// parseCalendar parses a feed body. Events that are all-day or lack a usable
// start or end are skipped.
func parseCalendar(body []byte) (string, []vevent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil, fmt.Errorf("%w: empty calendar body", domain.ErrRemoteFormat)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", domain.ErrRemoteFormat, err)
	}

	var name string
	for _, p := range cal.CalendarProperties {
		if p.IANAToken == string(ical.PropertyXWRCalName) {
			name = p.Value
		}
	}

	events := make([]vevent, 0, len(cal.Events()))
	for _, comp := range cal.Events() {
		ev, err := parseVEvent(comp)
		if err != nil {
			continue
		}
		events = append(events, ev)
	}

	return name, events, nil
}

func parseVEvent(ve *ical.VEvent) (vevent, error) {
	var out vevent

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	if !strings.Contains(dtStart.Value, "T") {
		return out, errors.New("all-day event")
	}
	if vs, ok := dtStart.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return out, errors.New("all-day event")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return out, err
	}
	if !end.After(start) {
		return out, errors.New("event ends before it starts")
	}
	out.Start, out.End = start, end

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(propertyTeacher); p != nil {
		out.Teacher = strings.TrimSpace(p.Value)
	} else if p := ve.GetProperty(ical.ComponentPropertyOrganizer); p != nil {
		if cn, ok := p.ICalParameters["CN"]; ok && len(cn) > 0 {
			out.Teacher = cn[0]
		}
	}
	if p := ve.GetProperty(propertyPeriod); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil && n > 0 {
			out.Period = n
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		out.Cancelled = strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED")
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := tzParam(p.ICalParameters, start.Location())
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, err := parseICSTime(p.Value, tzParam(p.ICalParameters, start.Location())); err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

// occurrencesOn expands events into the instances that start on day, in
// day's location. Overrides (RECURRENCE-ID) replace the instance they name.
func occurrencesOn(events []vevent, day time.Time) []occurrence {
	dayStart := domain.DayOf(day)
	dayEnd := domain.NextDay(dayStart)
	loc := dayStart.Location()

	overridden := make(map[string]bool)
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overridden[instanceKey(ev.UID, *ev.RecurrenceID)] = true
		}
	}

	var out []occurrence
	add := func(ev vevent, start, end time.Time) {
		start, end = start.In(loc), end.In(loc)
		if start.Before(dayStart) || !start.Before(dayEnd) || ev.Cancelled {
			return
		}
		out = append(out, occurrence{ev: ev, start: start, end: end})
	}

	for _, ev := range events {
		if ev.RecurrenceID != nil || ev.RawRRule == "" {
			add(ev, ev.Start, ev.End)
			continue
		}

		rule, err := rrule.StrToRRule(ev.RawRRule)
		if err != nil {
			continue
		}
		rule.DTStart(ev.Start)

		var set rrule.Set
		set.RRule(rule)
		for _, ex := range ev.ExDates {
			set.ExDate(ex.In(ev.Start.Location()))
		}

		from := dayStart.In(ev.Start.Location())
		to := dayEnd.Add(-time.Second).In(ev.Start.Location())
		duration := ev.End.Sub(ev.Start)
		for _, start := range set.Between(from, to, true) {
			if overridden[instanceKey(ev.UID, start)] {
				continue
			}
			add(ev, start, start.Add(duration))
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out
}

// toLessons numbers occurrences: X-PERIOD wins, then the bell schedule, then
// the rank of the lesson within the day.
func toLessons(occs []occurrence, bells []domain.ClockTime) []domain.Lesson {
	lessons := make([]domain.Lesson, 0, len(occs))
	for rank, occ := range occs {
		start := domain.ClockTime(occ.start.Hour()*60 + occ.start.Minute())
		end := domain.ClockTime(occ.end.Hour()*60 + occ.end.Minute())
		if !domain.DayOf(occ.end).Equal(domain.DayOf(occ.start)) {
			end = domain.MustClockTime("23:59")
		}

		period := occ.ev.Period
		if period == 0 {
			period = bellPeriod(start, bells)
		}
		if period == 0 {
			period = rank + 1
		}

		lessons = append(lessons, domain.Lesson{
			Period:    period,
			ShortName: occ.ev.Summary,
			Start:     start,
			End:       end,
			Room:      occ.ev.Location,
			Teacher:   occ.ev.Teacher,
		})
	}
	return lessons
}

func bellPeriod(start domain.ClockTime, bells []domain.ClockTime) int {
	for i, bell := range bells {
		if bell == start {
			return i + 1
		}
	}
	return 0
}

func instanceKey(uid string, t time.Time) string {
	return uid + "@" + strconv.FormatInt(t.Unix(), 10)
}

func tzParam(params map[string][]string, fallback *time.Location) *time.Location {
	if tz, ok := params["TZID"]; ok && len(tz) == 1 {
		if loc, err := time.LoadLocation(tz[0]); err == nil {
			return loc
		}
	}
	return fallback
}

// parseICSTime parses the DATE-TIME forms used by EXDATE and RECURRENCE-ID.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
