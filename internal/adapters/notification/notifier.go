// Package notification provides desktop notification utilities.
package notification

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
	"github.com/xvierd/timeline-cli/internal/config"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/logging"
	"github.com/xvierd/timeline-cli/internal/ports"
)

var (
	beeepNotify = beeep.Notify
	beeepAlert  = beeep.Alert
)

func init() {
	beeep.AppName = "Timeline"
}

// Notifier handles desktop notifications. As a Presenter it announces the
// current lesson whenever it changes and reports timelines that fail to load.
type Notifier struct {
	cfg    *config.NotificationConfig
	logger zerolog.Logger

	mu   sync.Mutex
	last map[string]string
}

// Ensure Notifier implements ports.Presenter.
var _ ports.Presenter = (*Notifier)(nil)

// New creates a new notifier with the given configuration.
func New(cfg *config.NotificationConfig) *Notifier {
	return &Notifier{
		cfg:    cfg,
		logger: logging.Component("notification"),
		last:   make(map[string]string),
	}
}

// Notify displays a desktop notification if enabled.
func (n *Notifier) Notify(title, message string) error {
	if !n.IsEnabled() {
		return nil
	}
	if n.cfg.Sound {
		return beeepAlert(title, message, "")
	}
	return beeepNotify(title, message, "")
}

// IsEnabled returns true if notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	return n.cfg != nil && n.cfg.Enabled
}

// Present implements ports.Presenter. Repeated states are not announced twice.
func (n *Notifier) Present(ownerID string, state *domain.TimelineState) {
	title, message, ok := describe(state)
	if !ok {
		return
	}

	n.mu.Lock()
	key := title + "\n" + message
	if n.last[ownerID] == key {
		n.mu.Unlock()
		return
	}
	n.last[ownerID] = key
	n.mu.Unlock()

	if err := n.Notify(title, message); err != nil {
		logger := logging.WithOwner(n.logger, ownerID)
		logger.Warn().Err(err).Msg("failed to send notification")
	}
}

// describe returns the notification for state, or false when the state is
// not worth interrupting anyone for.
func describe(state *domain.TimelineState) (string, string, bool) {
	if state == nil {
		return "", "", false
	}

	switch state.Status {
	case domain.StatusError:
		msg := "Unable to load the timetable."
		if state.LastError != "" {
			msg = fmt.Sprintf("Unable to load the timetable: %s", state.LastError)
		}
		return state.Label, msg, true

	case domain.StatusReady:
		l := state.CurrentLesson()
		if l == nil {
			return "", "", false
		}
		title := fmt.Sprintf("%s: %s", state.Label, l.ShortName)

		var details []string
		details = append(details, fmt.Sprintf("%s–%s", l.Start, l.End))
		if l.Room != "" {
			details = append(details, "room "+l.Room)
		}
		if l.Teacher != "" {
			details = append(details, l.Teacher)
		}
		return title, fmt.Sprintf("%s, %s", state.Day.Format("Mon 2 Jan"), strings.Join(details, ", ")), true

	default:
		return "", "", false
	}
}
