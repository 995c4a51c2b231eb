// Package report renders the end-of-run summary for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/floweriwe/stagehand/internal/orchestrator"
	"github.com/floweriwe/stagehand/internal/task"
)

var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	styleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 2)

	styleLabel = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	styleCompleted = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green")).
			Bold(true)

	styleFailed = lipgloss.NewStyle().
			Foreground(lipgloss.Color("red")).
			Bold(true)

	styleWarning = lipgloss.NewStyle().
			Foreground(lipgloss.Color("yellow"))
)

// Render formats a run summary as a bordered block suitable for printing
// after the loop exits.
func Render(s *orchestrator.Summary) string {
	var b strings.Builder

	b.WriteString(statLine("Stop reason", s.StopReason))
	b.WriteString(statLine("Elapsed", s.Elapsed.Round(10*time.Millisecond).String()))
	b.WriteString(statLine("Iterations", fmt.Sprintf("%d", s.Iterations)))
	b.WriteString(statLine("Tasks", fmt.Sprintf("%d total, %.0f%% complete", s.Stats.Total, s.Stats.Progress)))
	b.WriteString(statLine("Completed", styleCompleted.Render(fmt.Sprintf("%d", s.Stats.ByStatus[task.StatusCompleted]))))
	b.WriteString(statLine("Failed", styleFailed.Render(fmt.Sprintf("%d", s.Stats.ByStatus[task.StatusFailed]))))
	b.WriteString(statLine("Pending", fmt.Sprintf("%d", s.Stats.ByStatus[task.StatusPending])))
	b.WriteString(statLine("Blocked", fmt.Sprintf("%d", s.Stats.ByStatus[task.StatusBlocked])))
	b.WriteString(statLine("Skipped", fmt.Sprintf("%d", s.Stats.ByStatus[task.StatusSkipped])))
	b.WriteString(statLine("Generated", fmt.Sprintf("%d", s.Generated)))
	b.WriteString(statLine("Findings", fmt.Sprintf("%d issues, %d warnings", s.Issues, s.Warnings)))

	if len(s.Failed) > 0 {
		b.WriteString("\n")
		b.WriteString(styleFailed.Render("Failed tasks"))
		b.WriteString("\n")
		for _, t := range s.Failed {
			b.WriteString(fmt.Sprintf("  %s  %s\n", t.ID, t.Name))
			if t.Error != "" {
				b.WriteString(styleWarning.Render("    " + clip(t.Error, 120)))
				b.WriteString("\n")
			}
		}
	}

	title := styleTitle.Render("Run " + s.RunID)
	return title + "\n" + styleBox.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func statLine(label, value string) string {
	return fmt.Sprintf("%s %s\n", styleLabel.Render(fmt.Sprintf("%-12s", label)), value)
}

func clip(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
