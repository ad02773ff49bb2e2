package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/xvierd/timeline-cli/internal/config"
	"github.com/xvierd/timeline-cli/internal/domain"
)

// getTerminalWidth returns the current terminal width, defaulting to 80.
func getTerminalWidth() int {
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w < 40 {
		return 80
	}
	return w
}

// statusIcon returns a short marker for a timeline status.
func statusIcon(status domain.TimelineStatus) string {
	switch status {
	case domain.StatusReady:
		return "●"
	case domain.StatusLoading:
		return "◌"
	case domain.StatusError:
		return "✗"
	default:
		return "○"
	}
}

// RenderTimeline renders one owner's day: every position of the display
// sequence, free periods included, with the current lesson highlighted.
func RenderTimeline(state *domain.TimelineState, now time.Time, theme *config.ThemeConfig) string {
	t := resolveTheme(theme)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.ColorTitle))
	currentStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.ColorCurrent))
	lessonStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(t.ColorLesson))
	pastStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(t.ColorPast))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(t.ColorError))
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(t.ColorHelp))

	var b strings.Builder
	header := fmt.Sprintf("%s %s · %s", statusIcon(state.Status), state.Label, domain.StatusLabel(state.Status))
	if !state.Day.IsZero() && len(state.Lessons) > 0 {
		header += " · " + state.Day.Format("Mon 2 Jan 2006")
	}
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  "+header) + "\n\n")

	switch state.Status {
	case domain.StatusUninitialized:
		b.WriteString(helpStyle.Render("  No credentials yet. Run \"timeline login\" for this owner.") + "\n")
		return b.String()
	case domain.StatusError:
		msg := "Unable to load the timetable."
		if state.LastError != "" {
			msg = state.LastError
		}
		b.WriteString(errStyle.Render("  "+msg) + "\n")
		return b.String()
	}

	if state.Lessons.LessonCount() == 0 {
		b.WriteString(helpStyle.Render("  No lessons loaded.") + "\n")
		return b.String()
	}

	for i, l := range state.Lessons {
		if l == nil {
			b.WriteString(pastStyle.Render(fmt.Sprintf("    %2d  %-11s  free", i, "")) + "\n")
			continue
		}
		line := fmt.Sprintf("%2d  %s–%s  %s", i, l.Start, l.End, lessonLine(l))
		switch {
		case i == state.CurrentIndex:
			b.WriteString(currentStyle.Render("  ▸ "+line) + "\n")
		case !now.Before(l.EndAt(state.Day)):
			b.WriteString(pastStyle.Render("    "+line) + "\n")
		default:
			b.WriteString(lessonStyle.Render("    "+line) + "\n")
		}
	}
	return b.String()
}

func lessonLine(l *domain.Lesson) string {
	parts := []string{l.ShortName}
	if l.Room != "" {
		parts = append(parts, "room "+l.Room)
	}
	if l.Teacher != "" {
		parts = append(parts, l.Teacher)
	}
	return strings.Join(parts, " · ")
}

// RenderOwners renders one line per owner.
func RenderOwners(states []*domain.TimelineState, theme *config.ThemeConfig) string {
	t := resolveTheme(theme)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.ColorTitle))
	lessonStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(t.ColorLesson))
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(t.ColorHelp))

	if len(states) == 0 {
		return helpStyle.Render("No owners yet. Add one with \"timeline add <label>\".") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Owners (%d):", len(states))) + "\n\n")
	for _, s := range states {
		current := "-"
		if l := s.CurrentLesson(); l != nil && s.Status == domain.StatusReady {
			current = fmt.Sprintf("%s until %s", l.ShortName, l.End)
		}
		line := fmt.Sprintf("%s %-16s %-8s %-14s %s", statusIcon(s.Status), s.Label, domain.ShortID(s.OwnerID), domain.StatusLabel(s.Status), current)
		b.WriteString(lessonStyle.Render(line) + "\n")
	}
	return b.String()
}

// RenderEvents renders an owner's pending wake-ups.
func RenderEvents(state *domain.TimelineState, events []domain.ScheduledEvent, loc *time.Location, theme *config.ThemeConfig) string {
	t := resolveTheme(theme)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.ColorTitle))
	lessonStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(t.ColorLesson))
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(t.ColorHelp))

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Pending events for %s:", state.Label)) + "\n\n")
	if len(events) == 0 {
		b.WriteString(helpStyle.Render("  none") + "\n")
		return b.String()
	}
	if loc == nil {
		loc = time.Local
	}
	for _, ev := range events {
		what := "refresh"
		if ev.Kind == domain.EventAdvanceIndex {
			what = fmt.Sprintf("advance to %d", ev.TargetIndex)
			if l := lessonAt(state, ev.TargetIndex); l != nil {
				what += " (" + l.ShortName + ")"
			}
		}
		b.WriteString(lessonStyle.Render(fmt.Sprintf("  %s  %s", ev.FireAt.In(loc).Format("Mon 15:04"), what)) + "\n")
	}
	return b.String()
}

func lessonAt(state *domain.TimelineState, i int) *domain.Lesson {
	if state.Lessons.IsEmptyAt(i) {
		return nil
	}
	return state.Lessons[i]
}

// ShowTimeline prints RenderTimeline with a separator sized to the terminal.
func ShowTimeline(state *domain.TimelineState, now time.Time, theme *config.ThemeConfig) {
	fmt.Print(RenderTimeline(state, now, theme))
	t := resolveTheme(theme)
	rule := strings.Repeat("─", min(getTerminalWidth()-4, 60))
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color(t.ColorPast)).Render("  " + rule))
}
