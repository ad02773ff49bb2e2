package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/xvierd/timeline-cli/internal/config"
	"github.com/xvierd/timeline-cli/internal/domain"
	"github.com/xvierd/timeline-cli/internal/ports"
)

// Console prints one status line per presented state. It is the foreground
// presenter of "timeline run".
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	now   func() time.Time
	theme config.ThemeConfig
}

// Ensure Console implements ports.Presenter.
var _ ports.Presenter = (*Console)(nil)

// NewConsole creates a console presenter writing to out.
func NewConsole(out io.Writer, theme *config.ThemeConfig) *Console {
	return &Console{out: out, now: time.Now, theme: resolveTheme(theme)}
}

// Present implements ports.Presenter.
func (c *Console) Present(_ string, state *domain.TimelineState) {
	if state == nil {
		return
	}
	line := c.line(state)

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

func (c *Console) line(state *domain.TimelineState) string {
	stamp := lipgloss.NewStyle().Foreground(lipgloss.Color(c.theme.ColorHelp)).Render(c.now().Format("15:04:05"))
	prefix := fmt.Sprintf("%s %s %s", stamp, statusIcon(state.Status), state.Label)

	switch state.Status {
	case domain.StatusReady:
		l := state.CurrentLesson()
		if l == nil {
			return prefix + " · no lesson"
		}
		current := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.theme.ColorCurrent)).
			Render(fmt.Sprintf("%s until %s", l.ShortName, l.End))
		return fmt.Sprintf("%s · %s · %s", prefix, state.Day.Format("Mon 2 Jan"), current)
	case domain.StatusError:
		msg := state.LastError
		if msg == "" {
			msg = domain.StatusLabel(state.Status)
		}
		return prefix + " · " + lipgloss.NewStyle().Foreground(lipgloss.Color(c.theme.ColorError)).Render(msg)
	default:
		return prefix + " · " + domain.StatusLabel(state.Status)
	}
}
