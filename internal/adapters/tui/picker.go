package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/xvierd/timeline-cli/internal/config"
	"github.com/xvierd/timeline-cli/internal/domain"
)

// LessonRow is one selectable line of the lesson picker.
type LessonRow struct {
	Index   int
	Period  int
	Subject string
	Span    string
	Room    string
}

// LessonRows lists the lesson slots of seq. Free periods are not
// selectable and are left out.
func LessonRows(seq domain.DisplaySequence) []LessonRow {
	var rows []LessonRow
	for _, i := range seq.LessonIndexes() {
		l := seq[i]
		rows = append(rows, LessonRow{
			Index:   i,
			Period:  l.Period,
			Subject: l.ShortName,
			Span:    fmt.Sprintf("%s–%s", l.Start, l.End),
			Room:    l.Room,
		})
	}
	return rows
}

type lessonPicker struct {
	label   string
	rows    []LessonRow
	current int
	cursor  int
	picked  bool
	theme   config.ThemeConfig
}

func newLessonPicker(state *domain.TimelineState, theme *config.ThemeConfig) lessonPicker {
	m := lessonPicker{
		label:   state.Label,
		rows:    LessonRows(state.Lessons),
		current: -1,
		theme:   resolveTheme(theme),
	}
	for row, r := range m.rows {
		if r.Index == state.CurrentIndex {
			m.current, m.cursor = row, row
		}
	}
	return m
}

func (m lessonPicker) Init() tea.Cmd { return nil }

func (m lessonPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch s := key.String(); s {
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, len(m.rows)-1)
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = len(m.rows) - 1
	case "enter", " ":
		m.picked = true
		return m, tea.Quit
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	default:
		// A digit jumps to the lesson taught in that period.
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			m.cursor = m.rowForPeriod(int(s[0]-'0'))
		}
	}
	return m, nil
}

func (m lessonPicker) rowForPeriod(period int) int {
	for row, r := range m.rows {
		if r.Period == period {
			return row
		}
	}
	return m.cursor
}

func (m lessonPicker) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.ColorTitle))
	cursor := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.ColorCurrent))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.ColorHelp))

	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s\n\n", title.Render("Current lesson for "+m.label))
	for row, r := range m.rows {
		marker := " "
		if row == m.current {
			marker = "●"
		}
		line := fmt.Sprintf("%s %d. %-10s %s  %s", marker, r.Period, r.Subject, r.Span, r.Room)
		if row == m.cursor {
			b.WriteString("  " + cursor.Render("› "+line) + "\n")
			continue
		}
		b.WriteString("    " + dim.Render(line) + "\n")
	}
	b.WriteString("\n  " + dim.Render("j/k move · 1-9 period · enter set · q cancel") + "\n")
	return b.String()
}

// PickLesson lets the user move the current lesson of state by hand and
// returns the chosen sequence index.
func PickLesson(state *domain.TimelineState, theme *config.ThemeConfig) (int, bool) {
	m := newLessonPicker(state, theme)
	if len(m.rows) == 0 {
		return 0, false
	}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return 0, false
	}
	done := final.(lessonPicker)
	if !done.picked {
		return 0, false
	}
	return done.rows[done.cursor].Index, true
}

type passwordPrompt struct {
	title     string
	input     textinput.Model
	submitted bool
	theme     config.ThemeConfig
}

func (m passwordPrompt) Init() tea.Cmd { return textinput.Blink }

func (m passwordPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.submitted = true
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m passwordPrompt) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.ColorTitle))
	return fmt.Sprintf("\n  %s %s\n", title.Render(m.title), m.input.View())
}

// PromptPassword reads a masked password on the terminal. The value is
// returned untrimmed; ok is false when the user cancels.
func PromptPassword(title string, theme *config.ThemeConfig) (string, bool) {
	in := textinput.New()
	in.EchoMode = textinput.EchoPassword
	in.EchoCharacter = '•'
	in.CharLimit = 256
	in.Focus()

	final, err := tea.NewProgram(passwordPrompt{title: title, input: in, theme: resolveTheme(theme)}).Run()
	if err != nil {
		return "", false
	}
	done := final.(passwordPrompt)
	if !done.submitted {
		return "", false
	}
	return done.input.Value(), true
}
