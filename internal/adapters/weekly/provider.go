// Package weekly provides an offline timetable provider that repeats a
// weekly plan read from a YAML file.
//
//	name: Class 7b
//	accounts:
//	  - username: anna
//	    password: secret
//	holidays: ["2024-03-29"]
//	days:
//	  monday:
//	    - {period: 1, subject: Math, start: "08:00", end: "08:45", room: "101"}
//
// The file is read on every call, so edits apply to the next refresh.
// Without accounts any username is accepted.
package weekly

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
	"gopkg.in/yaml.v3"
)

// Account is a username/password pair accepted by Login.
type Account struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Plan is the content of a weekly timetable file.
type Plan struct {
	Name     string                     `yaml:"name"`
	Accounts []Account                  `yaml:"accounts,omitempty"`
	Holidays []string                   `yaml:"holidays,omitempty"`
	Days     map[string][]domain.Lesson `yaml:"days"`
}

// Provider implements ports.TimetableProvider from a weekly plan file.
type Provider struct {
	path string
}

// Ensure Provider implements ports.TimetableProvider.
var _ ports.TimetableProvider = (*Provider)(nil)

// New creates a weekly provider reading path.
func New(path string) (*Provider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("weekly provider requires a timetable file")
	}
	return &Provider{path: path}, nil
}

// Login implements ports.Authenticator.
func (p *Provider) Login(_ context.Context, username, password string) (*domain.Tokens, error) {
	plan, err := p.load()
	if err != nil {
		return nil, err
	}

	if len(plan.Accounts) > 0 && !plan.accepts(username, password) {
		return nil, fmt.Errorf("%w: unknown account %q", domain.ErrAuth, username)
	}

	return &domain.Tokens{
		Origin:    p.path,
		UserID:    username,
		FirstName: plan.Name,
	}, nil
}

// FetchDay implements ports.TimetableFetcher.
func (p *Provider) FetchDay(ctx context.Context, _ *domain.Tokens, day time.Time) ([]domain.Lesson, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plan, err := p.load()
	if err != nil {
		return nil, err
	}

	date := day.Format(time.DateOnly)
	for _, h := range plan.Holidays {
		if h == date {
			return nil, nil
		}
	}

	lessons := plan.Days[strings.ToLower(day.Weekday().String())]
	out := make([]domain.Lesson, len(lessons))
	copy(out, lessons)
	return out, nil
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading timetable: %w", domain.ErrNetwork, err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteFormat, err)
	}

	if err := plan.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRemoteFormat, err)
	}
	return &plan, nil
}

func (p *Provider) load() (*Plan, error) {
	return Load(p.path)
}

func (plan *Plan) accepts(username, password string) bool {
	for _, a := range plan.Accounts {
		if a.Username == username && a.Password == password {
			return true
		}
	}
	return false
}

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

func (plan *Plan) validate() error {
	normalized := make(map[string][]domain.Lesson, len(plan.Days))
	for name, lessons := range plan.Days {
		key := strings.ToLower(strings.TrimSpace(name))
		if !weekdays[key] {
			return fmt.Errorf("unknown weekday %q", name)
		}
		for _, l := range lessons {
			if l.Period < 1 {
				return fmt.Errorf("%s: %w: got %d for %q", key, domain.ErrInvalidPeriod, l.Period, l.ShortName)
			}
			if l.End <= l.Start {
				return fmt.Errorf("%s: lesson %q ends at %s before it starts at %s", key, l.ShortName, l.End, l.Start)
			}
		}
		normalized[key] = append(normalized[key], lessons...)
	}
	plan.Days = normalized

	for _, h := range plan.Holidays {
		if _, err := time.Parse(time.DateOnly, h); err != nil {
			return fmt.Errorf("invalid holiday %q: %w", h, err)
		}
	}
	return nil
}
