package tasklist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/theme"
)

// TaskItem wraps a model.Task so it can be used in a bubbles/list.
type TaskItem struct {
	Task model.Task
}

// FilterValue returns the string used for fuzzy filtering.
func (i TaskItem) FilterValue() string { return i.Task.Title }

// Title returns the task title for the list.
func (i TaskItem) Title() string { return i.Task.Title }

// Description returns a short summary line for the list.
func (i TaskItem) Description() string {
	parts := []string{
		i.Task.Status,
		i.Task.Priority,
		relativeTime(i.Task.UpdatedAt),
	}
	return strings.Join(parts, " | ")
}

// TaskDelegate implements list.ItemDelegate for rendering tasks.
type TaskDelegate struct {
	// activeTaskID is the task with a running timer, shared by pointer
	// with the list Model.
	activeTaskID string
}

// Height returns the number of lines each item takes.
func (d *TaskDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d *TaskDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d *TaskDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single list item line.
func (d *TaskDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TaskItem)
	if !ok {
		return
	}
	task := ti.Task

	timer := " "
	if task.ID == d.activeTaskID {
		timer = theme.TimerStyle.Render("⏱")
	}

	statusBadge := theme.StatusStyle(task.Status).Render(statusLabel(task.Status))
	priBadge := theme.PriorityStyle(task.Priority).Render(priorityLabel(task.Priority))

	overdue := ""
	if task.IsOverdue() {
		overdue = lipgloss.NewStyle().Foreground(theme.ColorRed).Bold(true).Render(" OVERDUE")
	}

	due := ""
	if task.DueDate != nil {
		due = lipgloss.NewStyle().Foreground(theme.ColorGray).Render(" " + task.DueDate.Format("Jan 02"))
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(task.UpdatedAt))

	line := fmt.Sprintf(
		"%s %s %s %s%s%s  %s",
		timer, statusBadge, priBadge, task.Title, due, overdue, timeStr,
	)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}

func statusLabel(s string) string {
	switch s {
	case model.StatusTodo:
		return "TODO"
	case model.StatusInProgress:
		return "DOING"
	case model.StatusReview:
		return "REVIEW"
	case model.StatusDone:
		return "DONE"
	default:
		return strings.ToUpper(s)
	}
}

// priorityLabel returns a short label for the given priority.
func priorityLabel(p string) string {
	switch p {
	case model.PriorityUrgent:
		return "P1"
	case model.PriorityHigh:
		return "P2"
	case model.PriorityMedium:
		return "P3"
	case model.PriorityLow:
		return "P4"
	default:
		return "P?"
	}
}
