package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ferrovia/tasktree/internal/task"
)

// Colors is the palette for the watch view.
var Colors = struct {
	Muted      lipgloss.Color
	Error      lipgloss.Color
	Success    lipgloss.Color
	Warning    lipgloss.Color
	Pending    lipgloss.Color
	InProgress lipgloss.Color
	Cancelled  lipgloss.Color
}{
	Muted:      lipgloss.Color("#636E72"),
	Error:      lipgloss.Color("#D63031"),
	Success:    lipgloss.Color("#00B894"),
	Warning:    lipgloss.Color("#FDCB6E"),
	Pending:    lipgloss.Color("#74B9FF"),
	InProgress: lipgloss.Color("#FDCB6E"),
	Cancelled:  lipgloss.Color("#636E72"),
}

// Styles holds the pre-built lipgloss styles.
type Styles struct {
	Title  lipgloss.Style
	TaskID lipgloss.Style
	Method lipgloss.Style
	Err    lipgloss.Style
	Help   lipgloss.Style

	badges map[task.Status]lipgloss.Style
}

// DefaultStyles builds the default style set.
func DefaultStyles() Styles {
	badge := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true),
		TaskID: lipgloss.NewStyle().Foreground(lipgloss.Color("#DFE6E9")),
		Method: lipgloss.NewStyle().Foreground(Colors.Muted),
		Err:    lipgloss.NewStyle().Foreground(Colors.Error),
		Help:   lipgloss.NewStyle().Foreground(Colors.Muted),
		badges: map[task.Status]lipgloss.Style{
			task.StatusPending:    badge(Colors.Pending),
			task.StatusInProgress: badge(Colors.InProgress),
			task.StatusCompleted:  badge(Colors.Success),
			task.StatusFailed:     badge(Colors.Error),
			task.StatusCancelled:  badge(Colors.Cancelled),
		},
	}
}

// Badge renders a status with its color.
func (s Styles) Badge(status task.Status) string {
	if style, ok := s.badges[status]; ok {
		return style.Render(string(status))
	}
	return string(status)
}
