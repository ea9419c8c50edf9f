package tasklist

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskflow/internal/keys"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/theme"
)

// Lister loads tasks, optionally restricted to a team.
type Lister interface {
	ListTasks(ctx context.Context, teamID string) ([]model.Task, error)
}

// TasksLoadedMsg is sent when tasks have been loaded from the API.
type TasksLoadedMsg struct {
	TeamID string
	Tasks  []model.Task
	Err    error
}

// SelectedTaskMsg is sent when a user selects a task to view details.
type SelectedTaskMsg struct {
	TaskID string
}

// ClearFilterMsg asks the parent to drop the persisted team filter.
type ClearFilterMsg struct{}

// Model is the task list view component.
type Model struct {
	list     list.Model
	lister   Lister
	keys     *keys.KeyMap
	delegate *TaskDelegate
	teamID   string
	focusID  string
	loading  bool
	err      error
	width    int
	height   int
}

// New creates a new task list model.
func New(l Lister, k *keys.KeyMap, width, height int) Model {
	delegate := &TaskDelegate{}
	lm := list.New([]list.Item{}, delegate, width, height-2)
	lm.Title = "Tasks"
	lm.SetShowStatusBar(true)
	lm.SetShowHelp(false)
	lm.SetFilteringEnabled(true)
	lm.Styles.Title = theme.HeaderStyle

	return Model{
		list:     lm,
		lister:   l,
		keys:     k,
		delegate: delegate,
		width:    width,
		height:   height,
	}
}

// Init returns a command that loads the initial set of tasks.
func (m Model) Init() tea.Cmd {
	return m.LoadTasks()
}

// Update handles messages for the task list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TasksLoadedMsg:
		// A reply for a filter that has since changed is stale.
		if msg.TeamID != m.teamID {
			return m, nil
		}
		m.loading = false
		m.err = msg.Err
		if msg.Err != nil {
			return m, nil
		}
		items := make([]list.Item, len(msg.Tasks))
		for i, task := range msg.Tasks {
			items[i] = TaskItem{Task: task}
		}
		cmd := m.list.SetItems(items)
		m.selectFocus()
		m.focusID = ""
		return m, cmd

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Select):
			item, ok := m.list.SelectedItem().(TaskItem)
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg {
				return SelectedTaskMsg{TaskID: item.Task.ID}
			}

		case key.Matches(msg, m.keys.ClearFilter):
			if m.teamID == "" {
				return m, nil
			}
			return m, func() tea.Msg { return ClearFilterMsg{} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// SetTeamFilter restricts the list to teamID and reloads it. An empty
// teamID shows every task.
func (m *Model) SetTeamFilter(teamID string) tea.Cmd {
	m.teamID = teamID
	if teamID == "" {
		m.list.Title = "Tasks"
	} else {
		m.list.Title = "Tasks · team " + teamID
	}
	return m.LoadTasks()
}

// FocusTask highlights taskID now if it is listed, and again once the
// next load arrives.
func (m *Model) FocusTask(taskID string) {
	m.focusID = taskID
	m.selectFocus()
}

func (m *Model) selectFocus() {
	if m.focusID == "" {
		return
	}
	for i, item := range m.list.Items() {
		if ti, ok := item.(TaskItem); ok && ti.Task.ID == m.focusID {
			m.list.Select(i)
			return
		}
	}
}

// TeamFilter returns the active team filter.
func (m Model) TeamFilter() string {
	return m.teamID
}

// SetActiveTask marks the task whose timer is running.
func (m *Model) SetActiveTask(taskID string) {
	m.delegate.activeTaskID = taskID
}

// View renders the task list view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

// renderEmptyState shows guidance text when no tasks are available.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return style.Render("Loading tasks...")
	case m.err != nil:
		return style.Foreground(theme.ColorRed).Render("Could not load tasks.\n" + m.err.Error())
	case m.teamID != "":
		return style.Render("No tasks for this team.\nPress c to clear the team filter.")
	}
	return style.Render("No tasks yet.")
}

// LoadTasks returns a tea.Cmd that fetches tasks for the current filter.
func (m *Model) LoadTasks() tea.Cmd {
	m.loading = true
	teamID := m.teamID
	l := m.lister
	return func() tea.Msg {
		tasks, err := l.ListTasks(context.Background(), teamID)
		return TasksLoadedMsg{TeamID: teamID, Tasks: tasks, Err: err}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}

// SelectedTask returns the highlighted task.
func (m Model) SelectedTask() (model.Task, bool) {
	item, ok := m.list.SelectedItem().(TaskItem)
	if !ok {
		return model.Task{}, false
	}
	return item.Task, true
}

// Filtering reports whether the fuzzy filter input has focus, in which
// case global shortcuts must not fire.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}
