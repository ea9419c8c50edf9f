package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/events"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/timer"
	"github.com/nhle/taskflow/internal/ui/detail"
)

// toastTTL is how long a toast stays in the status bar.
const toastTTL = 4 * time.Second

// initialFilterMsg carries the persisted team filter at startup.
type initialFilterMsg struct {
	teamID string
}

// timerResultMsg reports a finished start or stop.
type timerResultMsg struct {
	action string
	result timer.Result
}

// toastExpiredMsg clears the toast with the given id.
type toastExpiredMsg struct {
	id string
}

// logoutMsg reports the outcome of a logout.
type logoutMsg struct {
	err error
}

// loadInitialFilter reads the saved team filter.
func (m Model) loadInitialFilter() tea.Cmd {
	prefs := m.sess.Prefs
	logger := m.logger
	return func() tea.Msg {
		teamID, err := prefs.TeamFilter(context.Background())
		if err != nil {
			logger.Printf("[WARN] loading team filter: %v", err)
		}
		return initialFilterMsg{teamID: teamID}
	}
}

// saveTeamFilter persists teamID and broadcasts the change.
func (m Model) saveTeamFilter(teamID string) tea.Cmd {
	prefs := m.sess.Prefs
	bus := m.sess.Bus
	logger := m.logger
	return func() tea.Msg {
		if err := prefs.SaveTeamFilter(context.Background(), teamID); err != nil {
			logger.Printf("[WARN] saving team filter: %v", err)
		}
		bus.TeamFilterChanged.Publish(events.TeamFilterChanged{TeamID: teamID})
		return nil
	}
}

// loadTaskDetail fetches a task and reconciles the timer with it.
func (m Model) loadTaskDetail(taskID string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		task, err := sess.OpenTask(context.Background(), taskID)
		return detail.DetailLoadedMsg{Task: task, Err: err}
	}
}

// startTimer starts the timer on task.
func (m Model) startTimer(task model.TaskSummary) tea.Cmd {
	t := m.sess.Timer
	return func() tea.Msg {
		return timerResultMsg{action: "start", result: t.Start(context.Background(), task)}
	}
}

// stopTimer stops the running timer, if any.
func (m Model) stopTimer() tea.Cmd {
	t := m.sess.Timer
	return func() tea.Msg {
		return timerResultMsg{action: "stop", result: t.Stop(context.Background())}
	}
}

// markAllRead marks the whole inbox read from outside the panel.
func (m Model) markAllRead() tea.Cmd {
	ctrl := m.sess.Inbox
	return func() tea.Msg {
		res := ctrl.MarkAllRead(context.Background())
		if res.ServerErr != nil {
			return toastMsg{toast: events.Toast{
				ID:      "read-all",
				Message: fmt.Sprintf("Mark all read failed: %v", res.ServerErr),
				Level:   events.ToastError,
			}}
		}
		return nil
	}
}

// logout tears the session down and forgets the stored token.
func (m Model) logout() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		return logoutMsg{err: sess.Logout()}
	}
}

// expireToast schedules removal of the toast with id.
func expireToast(id string) tea.Cmd {
	return tea.Tick(toastTTL, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

// serverErrorToast turns a server rejection of an optimistic change into
// a toast. The local state has already moved on.
func serverErrorToast(action string, err error) events.Toast {
	msg := fmt.Sprintf("Server did not confirm timer %s: %v", action, err)
	if api.IsAuthError(err) {
		msg = "Session expired. Run `taskflow login` again."
	}
	return events.Toast{ID: "timer-" + action, Message: msg, Level: events.ToastWarning}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "refresh", "sync":
		m.sess.Poller.RefreshAll()
		return m.taskList.LoadTasks()
	case "inbox", "notifications":
		return m.openInbox()
	case "settings", "config":
		return m.openSettings()
	case "teams":
		return m.openTeams("")
	case "tasks":
		m.currentView = ViewTasks
		return nil
	case "stop":
		return m.stopTimer()
	case "read all":
		return m.markAllRead()
	case "clear filter", "clear":
		return m.saveTeamFilter("")
	case "logout":
		return m.logout()
	case "quit", "q":
		return m.quit()
	default:
		return func() tea.Msg {
			return toastMsg{toast: events.Toast{
				ID:      "unknown-command",
				Message: fmt.Sprintf("Unknown command %q", cmd),
				Level:   events.ToastWarning,
			}}
		}
	}
}
