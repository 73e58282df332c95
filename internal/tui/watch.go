// Package tui renders a live watch view over a running submission:
// one row per task, status badges fed by the event bus, a spinner
// while anything is still moving.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ferrovia/tasktree/internal/events"
	"github.com/ferrovia/tasktree/internal/task"
)

// Row is one task line in the watch view.
type Row struct {
	TaskID string
	Method string
	Status task.Status
	Err    string
}

// TransitionMsg carries one status transition from the event bus.
type TransitionMsg events.Event

// DoneMsg signals that the whole run has finished.
type DoneMsg struct{}

// Model is the bubbletea model for the watch view.
type Model struct {
	rows    []Row
	index   map[string]int
	styles  Styles
	spinner spinner.Model
	events  <-chan events.Event
	done    <-chan struct{}
	title   string
	quit    bool
}

// New builds a watch model over the initial rows. events feeds status
// transitions; done is closed when the run finishes.
func New(title string, rows []Row, evs <-chan events.Event, done <-chan struct{}) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	index := make(map[string]int, len(rows))
	for i, r := range rows {
		index[r.TaskID] = i
	}
	return Model{
		rows:    rows,
		index:   index,
		styles:  DefaultStyles(),
		spinner: sp,
		events:  evs,
		done:    done,
		title:   title,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

// waitForEvent blocks on the bus until the next transition or the end
// of the run.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-m.events:
			if !ok {
				return DoneMsg{}
			}
			return TransitionMsg(ev)
		case <-m.done:
			return DoneMsg{}
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}
		return m, nil

	case TransitionMsg:
		m.apply(events.Event(msg))
		return m, m.waitForEvent()

	case DoneMsg:
		m.quit = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(ev events.Event) {
	i, ok := m.index[ev.TaskID]
	if !ok {
		// A task outside the initial set (a copy clone, typically)
		// gets appended as it first appears.
		m.rows = append(m.rows, Row{TaskID: ev.TaskID})
		i = len(m.rows) - 1
		m.index[ev.TaskID] = i
	}
	m.rows[i].Status = ev.To
	m.rows[i].Err = ev.Error
}

func (m Model) View() string {
	var b strings.Builder

	header := m.styles.Title.Render(m.title)
	if m.anyActive() {
		header = m.spinner.View() + " " + header
	}
	b.WriteString(header)
	b.WriteString("\n\n")

	for _, r := range m.rows {
		line := fmt.Sprintf("  %s  %s",
			m.styles.Badge(r.Status),
			m.styles.TaskID.Render(r.TaskID))
		if r.Method != "" {
			line += "  " + m.styles.Method.Render(r.Method)
		}
		if r.Err != "" {
			line += "  " + m.styles.Err.Render(r.Err)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("q: quit"))
	b.WriteString("\n")
	return b.String()
}

// Rows exposes the current rows, mainly for tests.
func (m Model) Rows() []Row { return m.rows }

func (m Model) anyActive() bool {
	for _, r := range m.rows {
		if !r.Status.Terminal() {
			return true
		}
	}
	return false
}
