package ports

import (
	"context"
	"time"

	"github.com/xvierd/timeline-cli/internal/domain"
)

// Authenticator exchanges credentials for provider tokens.
// This is a driven port (implemented by adapters).
type Authenticator interface {
	// Login returns tokens or an error wrapping domain.ErrAuth or domain.ErrNetwork.
	Login(ctx context.Context, username, password string) (*domain.Tokens, error)
}

// TimetableFetcher returns the raw lessons of one calendar day.
// This is a driven port (implemented by adapters).
type TimetableFetcher interface {
	// FetchDay returns the lessons of day in any order. An empty result is
	// valid and means the day has no lessons. Errors wrap domain.ErrAuth,
	// domain.ErrNetwork or domain.ErrRemoteFormat.
	FetchDay(ctx context.Context, tokens *domain.Tokens, day time.Time) ([]domain.Lesson, error)
}

// TimetableProvider is the combined remote timetable interface.
type TimetableProvider interface {
	Authenticator
	TimetableFetcher
}
