package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xvierd/timeline-cli/internal/domain"
)

const timetable = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//timeline//test//EN
X-WR-CALNAME:Class 7b
BEGIN:VEVENT
UID:math@test
DTSTAMP:20240101T000000Z
DTSTART:20240226T080000Z
DTEND:20240226T084500Z
RRULE:FREQ=WEEKLY;BYDAY=MO
EXDATE:20240311T080000Z
SUMMARY:Math
LOCATION:101
X-TEACHER:Smith
END:VEVENT
BEGIN:VEVENT
UID:eng@test
DTSTAMP:20240101T000000Z
DTSTART:20240304T095000Z
DTEND:20240304T103500Z
SUMMARY:Eng
X-PERIOD:3
END:VEVENT
BEGIN:VEVENT
UID:trip@test
DTSTAMP:20240101T000000Z
DTSTART;VALUE=DATE:20240304
DTEND;VALUE=DATE:20240305
SUMMARY:Field trip
END:VEVENT
BEGIN:VEVENT
UID:art@test
DTSTAMP:20240101T000000Z
DTSTART:20240304T120000Z
DTEND:20240304T124500Z
SUMMARY:Art
STATUS:CANCELLED
END:VEVENT
BEGIN:VEVENT
UID:math@test
DTSTAMP:20240101T000000Z
RECURRENCE-ID:20240318T080000Z
DTSTART:20240318T085500Z
DTEND:20240318T094000Z
SUMMARY:Math
LOCATION:102
END:VEVENT
END:VCALENDAR
`

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newFeed(t *testing.T, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "anna" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(strings.ReplaceAll(body, "\n", "\r\n")))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{URL: "https://example.com/a.ics", BellTimes: []string{"8:00", "nope"}})
	assert.ErrorIs(t, err, domain.ErrInvalidClockTime)

	p, err := New(Config{URL: "https://example.com/a.ics", BellTimes: []string{"8:00", "8:55"}})
	require.NoError(t, err)
	assert.Equal(t, []domain.ClockTime{domain.MustClockTime("08:00"), domain.MustClockTime("08:55")}, p.bells)
}

func TestProvider_Login(t *testing.T) {
	srv, _ := newFeed(t, timetable)
	p, err := New(Config{URL: srv.URL})
	require.NoError(t, err)

	tokens, err := p.Login(context.Background(), "anna", "secret")
	require.NoError(t, err)
	assert.Equal(t, "anna", tokens.UserID)
	assert.Equal(t, "Class 7b", tokens.FirstName)
	assert.True(t, strings.HasPrefix(tokens.AccessToken, "Basic "))

	_, err = p.Login(context.Background(), "anna", "wrong")
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestProvider_FetchDay(t *testing.T) {
	srv, _ := newFeed(t, timetable)
	p, err := New(Config{URL: srv.URL, BellTimes: []string{"08:00", "08:55", "09:50"}})
	require.NoError(t, err)
	ctx := context.Background()

	tokens, err := p.Login(ctx, "anna", "secret")
	require.NoError(t, err)

	t.Run("regular monday", func(t *testing.T) {
		lessons, err := p.FetchDay(ctx, tokens, day(2024, 3, 4))
		require.NoError(t, err)
		require.Len(t, lessons, 2, "all-day and cancelled events are skipped")

		assert.Equal(t, 1, lessons[0].Period)
		assert.Equal(t, "Math", lessons[0].ShortName)
		assert.Equal(t, "101", lessons[0].Room)
		assert.Equal(t, "Smith", lessons[0].Teacher)
		assert.Equal(t, domain.MustClockTime("08:00"), lessons[0].Start)
		assert.Equal(t, domain.MustClockTime("08:45"), lessons[0].End)

		assert.Equal(t, 3, lessons[1].Period)
		assert.Equal(t, "Eng", lessons[1].ShortName)
	})

	t.Run("excluded instance", func(t *testing.T) {
		lessons, err := p.FetchDay(ctx, tokens, day(2024, 3, 11))
		require.NoError(t, err)
		assert.Empty(t, lessons)
	})

	t.Run("moved instance", func(t *testing.T) {
		lessons, err := p.FetchDay(ctx, tokens, day(2024, 3, 18))
		require.NoError(t, err)
		require.Len(t, lessons, 1)
		assert.Equal(t, 2, lessons[0].Period, "period from bell time")
		assert.Equal(t, "102", lessons[0].Room)
		assert.Equal(t, domain.MustClockTime("09:40"), lessons[0].End)
	})

	t.Run("day without lessons", func(t *testing.T) {
		lessons, err := p.FetchDay(ctx, tokens, day(2024, 3, 5))
		require.NoError(t, err)
		assert.Empty(t, lessons)
	})
}

func TestProvider_FetchDayUsesConditionalRequests(t *testing.T) {
	srv, hits := newFeed(t, timetable)
	p, err := New(Config{URL: srv.URL})
	require.NoError(t, err)
	ctx := context.Background()

	tokens, err := p.Login(ctx, "anna", "secret")
	require.NoError(t, err)

	// Served from the cache after a 304.
	lessons, err := p.FetchDay(ctx, tokens, day(2024, 3, 4))
	require.NoError(t, err)
	assert.Len(t, lessons, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestProvider_FallsBackToCacheOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(timetable))
	}))
	defer srv.Close()

	p, err := New(Config{URL: srv.URL})
	require.NoError(t, err)
	ctx := context.Background()

	tokens, err := p.Login(ctx, "anna", "secret")
	require.NoError(t, err)

	fail.Store(true)
	lessons, err := p.FetchDay(ctx, tokens, day(2024, 3, 4))
	require.NoError(t, err)
	assert.Len(t, lessons, 2)

	// A different account has no cached body.
	_, err = p.FetchDay(ctx, &domain.Tokens{AccessToken: basicAuth("ben", "x")}, day(2024, 3, 4))
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestProvider_Errors(t *testing.T) {
	t.Run("malformed feed", func(t *testing.T) {
		srv, _ := newFeed(t, "BEGIN:VTODO\nEND:VTODO\n")
		p, err := New(Config{URL: srv.URL})
		require.NoError(t, err)

		_, err = p.Login(context.Background(), "anna", "secret")
		assert.ErrorIs(t, err, domain.ErrRemoteFormat)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		p, err := New(Config{URL: url, Timeout: time.Second})
		require.NoError(t, err)

		_, err = p.FetchDay(context.Background(), nil, day(2024, 3, 4))
		assert.ErrorIs(t, err, domain.ErrNetwork)
	})

	t.Run("not found", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		p, err := New(Config{URL: srv.URL})
		require.NoError(t, err)

		_, err = p.FetchDay(context.Background(), nil, day(2024, 3, 4))
		assert.ErrorIs(t, err, domain.ErrNetwork)
	})
}

func TestToLessons_RankFallback(t *testing.T) {
	base := day(2024, 3, 4)
	occs := []occurrence{
		{ev: vevent{Summary: "A"}, start: base.Add(8 * time.Hour), end: base.Add(8*time.Hour + 45*time.Minute)},
		{ev: vevent{Summary: "B", Period: 5}, start: base.Add(10 * time.Hour), end: base.Add(10*time.Hour + 45*time.Minute)},
		{ev: vevent{Summary: "C"}, start: base.Add(11 * time.Hour), end: base.Add(11*time.Hour + 45*time.Minute)},
	}

	lessons := toLessons(occs, nil)
	require.Len(t, lessons, 3)
	assert.Equal(t, 1, lessons[0].Period)
	assert.Equal(t, 5, lessons[1].Period)
	assert.Equal(t, 3, lessons[2].Period)
}
