// Package tui provides the terminal user interface implementation
// using the Bubbletea framework.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/xvierd/timeline-cli/internal/config"
	"github.com/xvierd/timeline-cli/internal/domain"
)

// resolveTheme returns theme with unset colors taken from the default
// palette. A nil theme is the default palette.
func resolveTheme(theme *config.ThemeConfig) config.ThemeConfig {
	if theme == nil {
		return config.DefaultThemeConfig()
	}
	return theme.WithDefaults()
}

// tickMsg is sent on every timer tick.
type tickMsg time.Time

// stateMsg wraps an updated state fetched asynchronously.
type stateMsg struct {
	state *domain.TimelineState
}

// refreshedMsg reports the outcome of a manual refresh.
type refreshedMsg struct {
	err error
}

// Model is the live timeline view used by "timeline watch".
type Model struct {
	state      *domain.TimelineState
	progress   progress.Model
	width      int
	height     int
	fetchState func() *domain.TimelineState
	refresh    func() error
	now        func() time.Time
	theme      config.ThemeConfig

	refreshing bool
	lastError  error
}

// NewModel creates a new watch model.
func NewModel(initialState *domain.TimelineState, theme *config.ThemeConfig) Model {
	resolved := resolveTheme(theme)
	return Model{
		state:    initialState,
		progress: progress.New(progress.WithGradient(resolved.GradientStart, resolved.GradientEnd)),
		now:      time.Now,
		theme:    resolved,
	}
}

// SetFetchState sets the callback polled on every tick.
func (m *Model) SetFetchState(fetch func() *domain.TimelineState) {
	m.fetchState = fetch
}

// SetRefresh sets the callback run by the refresh key.
func (m *Model) SetRefresh(refresh func() error) {
	m.refresh = refresh
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// fetchStateCmd returns a tea.Cmd that fetches state asynchronously.
func fetchStateCmd(fetch func() *domain.TimelineState) tea.Cmd {
	return func() tea.Msg {
		return stateMsg{state: fetch()}
	}
}

func refreshCmd(refresh func() error) tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg{err: refresh()}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			if m.refresh != nil && !m.refreshing {
				m.refreshing = true
				m.lastError = nil
				return m, refreshCmd(m.refresh)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 4

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if m.fetchState != nil {
			cmds = append(cmds, fetchStateCmd(m.fetchState))
		}
		return m, tea.Batch(cmds...)

	case stateMsg:
		if msg.state != nil {
			m.state = msg.state
		}

	case refreshedMsg:
		m.refreshing = false
		m.lastError = msg.err
		if m.fetchState != nil {
			return m, fetchStateCmd(m.fetchState)
		}
	}

	return m, nil
}

// View renders the timeline with a progress bar for the current lesson.
func (m Model) View() string {
	if m.state == nil {
		return "Loading..."
	}

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ColorHelp))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ColorError))

	now := m.now()
	sections := []string{RenderTimeline(m.state, now, &m.theme)}

	if frac, ok := lessonProgress(m.state, now); ok {
		width := m.width - 4
		if width < 10 {
			width = 40
		}
		m.progress.Width = width
		sections = append(sections, "  "+m.progress.ViewAs(frac))
	}

	if m.lastError != nil {
		sections = append(sections, errStyle.Render("  "+m.lastError.Error()))
	}

	sections = append(sections, "")
	if m.refreshing {
		sections = append(sections, helpStyle.Render("  refreshing..."))
	} else {
		sections = append(sections, helpStyle.Render("  [r]efresh  [q]uit"))
	}
	return strings.Join(sections, "\n") + "\n"
}

// lessonProgress returns how far the current lesson has run at now.
func lessonProgress(state *domain.TimelineState, now time.Time) (float64, bool) {
	if state.Status != domain.StatusReady {
		return 0, false
	}
	l := state.CurrentLesson()
	if l == nil {
		return 0, false
	}
	start, end := l.StartAt(state.Day), l.EndAt(state.Day)
	if !end.After(start) {
		return 0, false
	}
	switch {
	case now.Before(start):
		return 0, true
	case !now.Before(end):
		return 1, true
	default:
		return float64(now.Sub(start)) / float64(end.Sub(start)), true
	}
}

// RunWatch shows the live view until the user quits or ctx is cancelled.
func RunWatch(ctx context.Context, state *domain.TimelineState, fetch func() *domain.TimelineState, refresh func() error, theme *config.ThemeConfig) error {
	m := NewModel(state, theme)
	m.SetFetchState(fetch)
	m.SetRefresh(refresh)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// tickCmd creates a command that sends a tick message.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
