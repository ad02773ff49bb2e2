// Package ics provides a timetable provider backed by an iCalendar feed.
//
// Every timed VEVENT of a day becomes a lesson. Recurring lessons are
// expanded with their RRULE and EXDATEs; moved instances (RECURRENCE-ID)
// replace the instance they name. The lesson's period comes from an
// X-PERIOD property, else from the configured bell times, else from its
// rank within the day.
package ics

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/logging"
	"github.com/xvierd/timeline-cli/internal/ports"
)

// DefaultTimeout bounds a single feed request.
const DefaultTimeout = 15 * time.Second

// Config contains configuration for the ICS provider.
type Config struct {
	// URL is the calendar feed. Credentials are sent as HTTP basic auth.
	URL string

	// BellTimes lists the start time of each period, first period first.
	BellTimes []string

	// Timeout bounds one HTTP request. Default: 15s
	Timeout time.Duration
}

// Provider implements ports.TimetableProvider for an ICS feed.
type Provider struct {
	fetcher *fetcher
	bells   []domain.ClockTime
}

// Ensure Provider implements ports.TimetableProvider.
var _ ports.TimetableProvider = (*Provider)(nil)

// New creates an ICS provider.
func New(config Config) (*Provider, error) {
	if strings.TrimSpace(config.URL) == "" {
		return nil, errors.New("ics provider requires a feed URL")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	bells := make([]domain.ClockTime, 0, len(config.BellTimes))
	for _, b := range config.BellTimes {
		c, err := domain.ParseClockTime(b)
		if err != nil {
			return nil, fmt.Errorf("invalid bell time: %w", err)
		}
		bells = append(bells, c)
	}

	return &Provider{
		fetcher: newFetcher(config.URL, config.Timeout),
		bells:   bells,
	}, nil
}

// Login checks the credentials against the feed. The returned access token
// is the Authorization header value FetchDay sends.
func (p *Provider) Login(ctx context.Context, username, password string) (*domain.Tokens, error) {
	authorization := basicAuth(username, password)

	body, err := p.fetcher.fetch(ctx, authorization)
	if err != nil {
		return nil, err
	}

	name, _, err := parseCalendar(body)
	if err != nil {
		return nil, err
	}

	return &domain.Tokens{
		AccessToken: authorization,
		Origin:      logging.RedactURL(p.fetcher.url),
		UserID:      username,
		FirstName:   name,
	}, nil
}

// FetchDay implements ports.TimetableFetcher.
func (p *Provider) FetchDay(ctx context.Context, tokens *domain.Tokens, day time.Time) ([]domain.Lesson, error) {
	var authorization string
	if tokens != nil {
		authorization = tokens.AccessToken
	}

	body, err := p.fetcher.fetch(ctx, authorization)
	if err != nil {
		return nil, err
	}

	_, events, err := parseCalendar(body)
	if err != nil {
		return nil, err
	}

	return toLessons(occurrencesOn(events, day), p.bells), nil
}

func basicAuth(username, password string) string {
	if username == "" && password == "" {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
