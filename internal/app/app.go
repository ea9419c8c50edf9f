package app

import (
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskflow/internal/events"
	"github.com/nhle/taskflow/internal/inbox"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/session"
	appsync "github.com/nhle/taskflow/internal/sync"
	"github.com/nhle/taskflow/internal/theme"
	"github.com/nhle/taskflow/internal/ui"
	"github.com/nhle/taskflow/internal/ui/command"
	configview "github.com/nhle/taskflow/internal/ui/config"
	"github.com/nhle/taskflow/internal/ui/detail"
	helpview "github.com/nhle/taskflow/internal/ui/help"
	"github.com/nhle/taskflow/internal/ui/notifications"
	"github.com/nhle/taskflow/internal/ui/tasklist"
	"github.com/nhle/taskflow/internal/ui/teams"
	"github.com/nhle/taskflow/internal/ui/timerwidget"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewTasks ViewState = iota
	ViewDetail
	ViewTeams
	ViewInbox
	ViewHelp
	ViewCommand
	ViewSettings
)

// Model is the root Bubble Tea model. It routes between views, renders
// the timer sidebar, and turns session events into messages.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	width        int
	height       int
	showSidebar  bool

	sess   *session.Session
	logger *log.Logger
	keys   *KeyMap
	bridge *bridge

	taskList    tasklist.Model
	detail      detail.Model
	teamsView   teams.Model
	inboxView   notifications.Model
	helpView    helpview.Model
	commandView command.Model
	configView  configview.Model
	sidebar     timerwidget.Model

	ready            bool
	quitting         bool
	toast            *events.Toast
	authErrorMessage string
	LogoutErr        error
	LoggedOut        bool
}

// New creates the root model for a started session. configPath is where
// the settings view writes changes.
func New(sess *session.Session, cfg *model.AppConfig, configPath string, logger *log.Logger) Model {
	keys := DefaultKeyMap()

	m := Model{
		currentView: ViewTasks,
		showSidebar: cfg.Display.ShowSidebar,
		sess:        sess,
		logger:      logger,
		keys:        keys,
		bridge:      newBridge(sess.Bus),
		taskList:    tasklist.New(sess.API, keys, 80, 24),
		detail:      detail.New(keys, 80, 24),
		teamsView:   teams.New(sess.API, keys, 80, 24),
		inboxView:   notifications.New(sess.Inbox, keys, 80, 24),
		helpView:    helpview.New(keys, 80, 24),
		commandView: command.New(80, 24),
		configView:  configview.New(*cfg, configPath, sess.API, keys, 80, 24),
		sidebar:     timerwidget.New(ui.DefaultSidebarWidth, 24),
	}
	m.syncSidebar(sess.Timer.State())
	return m
}

// Init loads the saved filter and starts listening to the session.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadInitialFilter(),
		m.sess.Poller.Start(),
		m.bridge.wait(),
		waitForTimer(m.sess.Timer.Updates()),
		waitForInbox(m.sess.Inbox.Updates()),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.ready = true
		return m.updateActiveView(msg)

	case initialFilterMsg:
		m.sidebar.SetTeamFilter(msg.teamID)
		return m, m.taskList.SetTeamFilter(msg.teamID)

	case appsync.SyncResultMsg:
		if msg.AuthError != nil {
			m.authErrorMessage = msg.AuthError.Message
		} else if msg.Error == nil {
			m.authErrorMessage = ""
		}
		m.refreshConnection()
		return m, m.sess.Poller.WaitForNextResult()

	case timerUpdateMsg:
		m.syncSidebar(msg.state)
		return m, waitForTimer(m.sess.Timer.Updates())

	case inboxUpdateMsg:
		m.sidebar.SetUnread(m.sess.Inbox.Unread())
		m.inboxView.Refresh()
		m.refreshConnection()
		return m, waitForInbox(m.sess.Inbox.Updates())

	case teamFilterMsg:
		m.sidebar.SetTeamFilter(msg.teamID)
		if msg.teamID == m.taskList.TeamFilter() {
			return m, m.bridge.wait()
		}
		return m, tea.Batch(m.taskList.SetTeamFilter(msg.teamID), m.bridge.wait())

	case refreshTasksMsg:
		return m, tea.Batch(m.taskList.LoadTasks(), m.bridge.wait())

	case toastMsg:
		t := msg.toast
		m.toast = &t
		return m, tea.Batch(expireToast(t.ID), m.bridge.wait())

	case toastExpiredMsg:
		if m.toast != nil && m.toast.ID == msg.id {
			m.toast = nil
		}
		return m, nil

	case timerResultMsg:
		m.syncSidebar(m.sess.Timer.State())
		if msg.result.ServerErr != nil {
			t := serverErrorToast(msg.action, msg.result.ServerErr)
			m.toast = &t
			return m, expireToast(t.ID)
		}
		return m, nil

	case logoutMsg:
		m.LoggedOut = true
		m.LogoutErr = msg.err
		m.quitting = true
		m.bridge.close()
		return m, tea.Quit

	case tasklist.SelectedTaskMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetLoading(true)
		return m, m.loadTaskDetail(msg.TaskID)

	case tasklist.ClearFilterMsg:
		return m, m.saveTeamFilter("")

	case detail.DetailLoadedMsg:
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd

	case detail.BackMsg:
		m.currentView = ViewTasks
		return m, nil

	case detail.TimerActionMsg:
		if msg.Start {
			return m, m.startTimer(msg.Task)
		}
		return m, m.stopTimer()

	case teams.BackMsg:
		m.currentView = ViewTasks
		return m, nil

	case teams.SelectedTeamMsg:
		m.currentView = ViewTasks
		return m, m.saveTeamFilter(msg.TeamID)

	case notifications.CloseMsg:
		m.currentView = m.previousView
		if m.currentView == ViewInbox {
			m.currentView = ViewTasks
		}
		return m, nil

	case notifications.NavigateMsg:
		return m, m.navigate(msg.Route)

	case notifications.ResultMsg:
		var cmd tea.Cmd
		m.inboxView, cmd = m.inboxView.Update(msg)
		m.sidebar.SetUnread(m.sess.Inbox.Unread())
		return m, cmd

	case configview.ConfigDoneMsg:
		m.currentView = m.previousView
		if m.currentView == ViewSettings {
			m.currentView = ViewTasks
		}
		return m, nil

	case configview.ConfigSavedMsg:
		if msg.Config.Display.ShowSidebar != m.showSidebar {
			m.showSidebar = msg.Config.Display.ShowSidebar
			m.resize()
		}
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey runs keys that work outside any one view. Views that
// take text input see their keys first.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m.quit(), true
	}
	if m.currentView == ViewCommand && msg.String() != ":" && msg.String() != "esc" {
		return nil, false
	}
	if m.currentView == ViewCommand && msg.String() == "esc" {
		m.currentView = m.previousView
		return nil, true
	}
	if m.currentView == ViewInbox || m.currentView == ViewSettings ||
		(m.currentView == ViewTasks && m.taskList.Filtering()) {
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.currentView == ViewTasks {
			return m.quit(), true
		}

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case key.Matches(msg, m.keys.Command):
		if m.currentView == ViewCommand {
			m.currentView = m.previousView
			return nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Inbox):
		return m.openInbox(), true

	case key.Matches(msg, m.keys.Teams):
		if m.currentView != ViewTeams {
			return m.openTeams(""), true
		}

	case key.Matches(msg, m.keys.Settings):
		return m.openSettings(), true

	case key.Matches(msg, m.keys.Sidebar):
		m.showSidebar = !m.showSidebar
		m.resize()
		return nil, true

	case key.Matches(msg, m.keys.Refresh):
		if m.currentView == ViewTasks {
			m.sess.Poller.RefreshAll()
			return m.taskList.LoadTasks(), true
		}

	case key.Matches(msg, m.keys.StartTimer):
		if m.currentView == ViewTasks {
			if task, ok := m.taskList.SelectedTask(); ok {
				return m.startTimer(task.Summary()), true
			}
			return nil, true
		}

	case key.Matches(msg, m.keys.StopTimer):
		if m.currentView == ViewTasks {
			return m.stopTimer(), true
		}

	case key.Matches(msg, m.keys.Back):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
	}
	return nil, false
}

// openInbox shows the notification panel and re-fetches its list.
func (m *Model) openInbox() tea.Cmd {
	if m.currentView != ViewInbox {
		m.previousView = m.currentView
	}
	m.currentView = ViewInbox
	m.inboxView.Refresh()
	return m.inboxView.Open()
}

// openSettings shows the settings view.
func (m *Model) openSettings() tea.Cmd {
	if m.currentView != ViewSettings {
		m.previousView = m.currentView
	}
	m.currentView = ViewSettings
	return m.configView.Init()
}

// openTeams shows the teams view with focusID highlighted.
func (m *Model) openTeams(focusID string) tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewTeams
	return m.teamsView.Open(focusID)
}

// navigate moves to the view a notification points at. The team filter,
// when the route carries one, has already been saved and broadcast, so the
// task list reloads on its own; the referenced task is highlighted in it.
func (m *Model) navigate(r inbox.Route) tea.Cmd {
	switch r.View {
	case inbox.ViewTeams:
		return m.openTeams(r.TeamID)
	default:
		m.currentView = ViewTasks
		if r.TaskID != "" {
			m.taskList.FocusTask(r.TaskID)
		}
		return nil
	}
}

// quit tears the session down and exits.
func (m *Model) quit() tea.Cmd {
	m.quitting = true
	m.bridge.close()
	m.sess.Teardown()
	return tea.Quit
}

// syncSidebar pushes timer state into every view that shows it.
func (m *Model) syncSidebar(st model.TimerState) {
	w := st.Widget()
	m.sidebar.SetTimer(w)
	m.detail.SetTimer(w)
	if st.IsRunning && st.ActiveTask != nil {
		m.taskList.SetActiveTask(st.ActiveTask.ID)
	} else {
		m.taskList.SetActiveTask("")
	}
	m.sidebar.SetUnread(m.sess.Inbox.Unread())
	m.refreshConnection()
}

func (m *Model) refreshConnection() {
	if m.sess.Channel == nil {
		m.sidebar.SetConnection(nil)
		return
	}
	c := m.sess.Channel.Connection()
	m.sidebar.SetConnection(&c)
}

func (m *Model) resize() {
	m.layout = ui.NewLayout(m.width, m.height, m.showSidebar)
	contentWidth := m.layout.ContentWidth()
	contentHeight := m.layout.ContentHeight()
	m.taskList.SetSize(contentWidth, contentHeight)
	m.detail.SetSize(contentWidth, contentHeight)
	m.teamsView.SetSize(contentWidth, contentHeight)
	m.inboxView.SetSize(contentWidth, contentHeight)
	m.helpView.SetSize(contentWidth, contentHeight)
	m.commandView.SetSize(contentWidth, contentHeight)
	m.configView.SetSize(contentWidth, contentHeight)
	m.sidebar.SetSize(m.layout.SidebarWidth, contentHeight)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewTasks:
		m.taskList, cmd = m.taskList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewTeams:
		m.teamsView, cmd = m.teamsView.Update(msg)
	case ViewInbox:
		m.inboxView, cmd = m.inboxView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewSettings:
		m.configView, cmd = m.configView.Update(msg)
	}

	// Task loads may land while another view is showing.
	if _, ok := msg.(tasklist.TasksLoadedMsg); ok && m.currentView != ViewTasks {
		m.taskList, cmd = m.taskList.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	headerTitle := "TaskFlow"
	if n := m.sess.Inbox.Unread(); n > 0 {
		headerTitle = fmt.Sprintf("TaskFlow [%d new]", n)
	}
	header := m.layout.RenderHeader(headerTitle, m.syncStatus())

	var sidebar string
	if m.layout.SidebarWidth > 0 {
		sidebar = m.sidebar.View()
	}
	content := m.layout.RenderBody(m.renderContent(), sidebar)
	statusBar := m.layout.RenderStatusBar(m.statusLine())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewTasks:
		return m.taskList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewTeams:
		return m.teamsView.View()
	case ViewInbox:
		return m.inboxView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewSettings:
		return m.configView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the combined job state
// and, when push is enabled, whether the channel is live.
func (m Model) syncStatus() string {
	var parts []string

	running := 0
	var failing []string
	for _, s := range m.sess.Poller.GetStatuses() {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError:
			failing = append(failing, s.Job)
		}
	}
	switch {
	case running > 0:
		parts = append(parts, fmt.Sprintf("syncing (%d)", running))
	case len(failing) > 0:
		parts = append(parts, "⚠ failing: "+strings.Join(failing, ", "))
	default:
		parts = append(parts, "idle")
	}

	if m.sess.Channel != nil {
		if m.sess.Channel.Connected() {
			parts = append(parts, "live")
		} else {
			parts = append(parts, "offline")
		}
	}
	return strings.Join(parts, " · ")
}

// statusLine returns the toast, the auth error, or the key hints.
func (m Model) statusLine() string {
	if m.toast != nil {
		return theme.ToastStyle(int(m.toast.Level)).Render(m.toast.Message)
	}
	if m.authErrorMessage != "" {
		return m.authErrorMessage
	}
	return m.keyHints()
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	case ViewDetail:
		return "esc back | s start timer | x stop timer | j/k scroll"
	case ViewTeams:
		return "enter show tasks | r refresh | esc back"
	case ViewInbox:
		return "enter open | m read | M read all | d delete | D delete all | esc close"
	case ViewSettings:
		return "e edit | enter test connection | esc back"
	default:
		if m.taskList.TeamFilter() != "" {
			return "team " + m.taskList.TeamFilter() + " | c clear | n inbox | s start | x stop"
		}
		return "q quit | ? help | n inbox | T teams | s start | x stop | / search"
	}
}
