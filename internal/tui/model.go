// Package tui implements the live watch view: a queue progress pane and a
// scrolling activity log, both fed from the event bus.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/floweriwe/stagehand/internal/events"
)

// RunFinishedMsg tells the watch view that the execution loop exited.
// The driver sends it after the runner returns.
type RunFinishedMsg struct {
	StopReason string
}

// Model is the root Bubble Tea model for the watch view.
// It subscribes to all events from the event bus using SubscribeAll.
type Model struct {
	progressPane ProgressPaneModel
	logPane      LogPaneModel
	eventSub     <-chan events.Event
	width        int
	height       int
	stopReason   string
	quitting     bool
}

// New creates the watch model subscribed to every bus event.
func New(bus *events.Bus) Model {
	return Model{
		progressPane: NewProgressPaneModel(),
		logPane:      NewLogPaneModel(),
		eventSub:     bus.SubscribeAll(256),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		default:
			var cmd tea.Cmd
			m.logPane, cmd = m.logPane.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case RunFinishedMsg:
		m.stopReason = msg.StopReason
		m.quitting = true
		return m, tea.Quit

	case events.QueueProgressEvent:
		var cmd tea.Cmd
		m.progressPane, cmd = m.progressPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.TaskStartedEvent, events.TaskCompletedEvent, events.TaskFailedEvent,
		events.TasksGeneratedEvent, events.FindingEvent:
		var cmd tea.Cmd
		m.logPane, cmd = m.logPane.Update(msg)
		cmds = append(cmds, cmd)
		cmds = append(cmds, waitForEvent(m.eventSub))
	}

	return m, tea.Batch(cmds...)
}

// View renders the watch view.
func (m Model) View() string {
	if m.quitting {
		if m.stopReason != "" {
			return "Run finished: " + m.stopReason + "\n"
		}
		return ""
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, m.progressPane.View(), m.logPane.View())
	helpBar := StyleHelp.Render(" q: quit  ↑/↓: scroll log")

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, helpBar)
}

// computeLayout splits the window between the two panes.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 30) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // reserve 1 line for help bar

	m.progressPane.SetSize(leftWidth, availableHeight)
	m.logPane.SetSize(rightWidth, availableHeight)
}
