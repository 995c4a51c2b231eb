package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/floweriwe/stagehand/internal/events"
)

const maxLogLines = 500

// LogPaneModel is a scrollable log of task lifecycle events and findings.
type LogPaneModel struct {
	lines    []string
	viewport viewport.Model
	width    int
	height   int
}

// NewLogPaneModel creates an empty log pane.
func NewLogPaneModel() LogPaneModel {
	return LogPaneModel{
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the log pane.
func (m LogPaneModel) Update(msg tea.Msg) (LogPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		m.viewport, cmd = m.viewport.Update(msg)

	case events.TaskStartedEvent:
		m.append(fmt.Sprintf("%s %s  %s", msg.Timestamp.Format("15:04:05"),
			StyleStatusRunning.Render("RUN "), msg.Name))

	case events.TaskCompletedEvent:
		m.append(fmt.Sprintf("%s %s  %s (%v)", msg.Timestamp.Format("15:04:05"),
			StyleStatusComplete.Render("DONE"), msg.ID, msg.Duration.Round(10*time.Millisecond)))

	case events.TaskFailedEvent:
		line := fmt.Sprintf("%s %s  %s: %s", msg.Timestamp.Format("15:04:05"),
			StyleStatusFailed.Render("FAIL"), msg.ID, msg.Reason)
		if msg.RolledBack {
			line += StyleStatusPending.Render(" (rolled back)")
		}
		m.append(line)

	case events.TasksGeneratedEvent:
		m.append(fmt.Sprintf("%s %s  %s spawned %s", msg.Timestamp.Format("15:04:05"),
			StyleWarning.Render("GEN "), msg.ID, strings.Join(msg.Generated, ", ")))

	case events.FindingEvent:
		m.append(fmt.Sprintf("%s %s  %s: %s", msg.Timestamp.Format("15:04:05"),
			StyleWarning.Render("NOTE"), msg.Severity, msg.Text))
	}

	return m, cmd
}

// View renders the log pane.
func (m LogPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	title := StyleTitle.Render("Activity")
	return StylePaneBorder.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(title + "\n" + m.viewport.View())
}

// SetSize updates the pane dimensions.
func (m *LogPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

func (m *LogPaneModel) append(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *LogPaneModel) resizeViewport() {
	m.viewport.Width = max(0, m.width-4)
	m.viewport.Height = max(0, m.height-4)
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}
