package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskflow/internal/keys"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// DetailLoadedMsg carries the loaded task.
type DetailLoadedMsg struct {
	Task *model.Task
	Err  error
}

// TimerActionMsg asks the parent to start or stop the timer on Task.
type TimerActionMsg struct {
	Start bool
	Task  model.TaskSummary
}

// Model is the task detail view component.
type Model struct {
	task     *model.Task
	err      error
	timer    model.TimerWidget
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DetailLoadedMsg:
		m.task = msg.Task
		m.err = msg.Err
		m.loading = false
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.StartTimer):
			if m.task != nil && !m.timingThisTask() {
				summary := m.task.Summary()
				return m, func() tea.Msg {
					return TimerActionMsg{Start: true, Task: summary}
				}
			}
			return m, nil

		case key.Matches(msg, m.keys.StopTimer):
			if m.timingThisTask() {
				summary := m.task.Summary()
				return m, func() tea.Msg {
					return TimerActionMsg{Start: false, Task: summary}
				}
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) timingThisTask() bool {
	return m.task != nil && m.timer.IsRunning &&
		m.timer.ActiveTask != nil && m.timer.ActiveTask.ID == m.task.ID
}

// View renders the detail view.
func (m Model) View() string {
	centered := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loading {
		return centered.Render("Loading task details...")
	}
	if m.err != nil {
		return centered.Foreground(theme.ColorRed).Render("Could not load task.\n" + m.err.Error())
	}
	if m.task == nil {
		return centered.Render("No task selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.task == nil {
		return ""
	}

	task := m.task
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(task.Title))

	statusBadge := theme.StatusStyle(task.Status).Render(task.Status)
	priBadge := theme.PriorityStyle(task.Priority).Render(task.Priority)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, statusBadge, "  ", priBadge))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) {
		sections = append(sections, fmt.Sprintf("%s %s",
			metaStyle.Render(fmt.Sprintf("%-10s", label+":")),
			valStyle.Render(value),
		))
	}

	if task.Team != "" {
		row("Team", task.Team)
	}
	if task.Assignee != "" {
		row("Assignee", task.Assignee)
	}
	if task.DueDate != nil {
		due := task.DueDate.Format("2006-01-02")
		if task.IsOverdue() {
			due += lipgloss.NewStyle().Foreground(theme.ColorRed).Render(" overdue")
		}
		row("Due", due)
	}
	if !task.CreatedAt.IsZero() {
		row("Created", task.CreatedAt.Format("2006-01-02 15:04"))
	}
	if !task.UpdatedAt.IsZero() {
		row("Updated", task.UpdatedAt.Format("2006-01-02 15:04"))
	}
	row("Logged", model.FormatElapsed(task.TotalTimeSpent))

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))
	sections = append(sections, "", separator, "")

	sections = append(sections, m.renderTimer())
	sections = append(sections, "", separator, "")

	descHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	sections = append(sections, descHeaderStyle.Render("Description"))

	body := task.Description
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No description")
	}
	sections = append(sections, body)

	if len(task.TimeEntries) > 0 {
		sections = append(sections, "", separator, "")
		sections = append(sections, descHeaderStyle.Render(fmt.Sprintf("Time entries (%d)", len(task.TimeEntries))))
		for _, e := range task.TimeEntries {
			sections = append(sections, fmt.Sprintf("%s  %s",
				metaStyle.Render(e.StartTime.Format("2006-01-02 15:04")),
				valStyle.Render(model.FormatElapsed(e.Duration)),
			))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTimer() string {
	gray := lipgloss.NewStyle().Foreground(theme.ColorGray)
	switch {
	case m.timingThisTask():
		return theme.TimerStyle.Render("● "+m.timer.FormattedTime) + gray.Render("  x to stop")
	case m.timer.IsRunning && m.timer.ActiveTask != nil:
		return gray.Render(fmt.Sprintf("Timer running on %q. s switches it here.", m.timer.ActiveTask.Title))
	default:
		return gray.Render("No active timer. s to start.")
	}
}

// SetTask updates the task being displayed and re-renders the content.
func (m *Model) SetTask(task *model.Task) {
	m.task = task
	m.err = nil
	m.loading = false
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetTimer refreshes the timer line.
func (m *Model) SetTimer(w model.TimerWidget) {
	m.timer = w
	if m.task != nil {
		m.viewport.SetContent(m.renderContent())
	}
}

// CurrentTaskID returns the id of the displayed task, or "".
func (m Model) CurrentTaskID() string {
	if m.task == nil {
		return ""
	}
	return m.task.ID
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.task != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
