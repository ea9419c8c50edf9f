// Package notifications is the inbox panel: the notification list with
// read, delete and navigate actions.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskflow/internal/inbox"
	"github.com/nhle/taskflow/internal/keys"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/theme"
)

// CloseMsg signals the parent to close the inbox panel.
type CloseMsg struct{}

// NavigateMsg asks the parent to go to Route after a notification was
// activated.
type NavigateMsg struct {
	Route inbox.Route
}

// ResultMsg reports a finished mutation.
type ResultMsg struct {
	Action string
	Result inbox.Result
}

type panelMode int

const (
	modeList panelMode = iota
	modeConfirmDeleteAll
)

type formBindings struct {
	confirm bool
}

// Model is the Bubble Tea model for the inbox panel.
type Model struct {
	mode        panelMode
	ctrl        *inbox.Controller
	keys        *keys.KeyMap
	snap        inbox.Snapshot
	selectedIdx int
	confirmForm *huh.Form
	fb          *formBindings
	statusMsg   string
	width       int
	height      int
}

// New creates an inbox panel backed by ctrl.
func New(ctrl *inbox.Controller, k *keys.KeyMap, width, height int) Model {
	return Model{
		mode:   modeList,
		ctrl:   ctrl,
		keys:   k,
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Open returns a command that opens the controller, which re-fetches.
func (m *Model) Open() tea.Cmd {
	m.mode = modeList
	m.statusMsg = ""
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.Open(context.Background())
		return nil
	}
}

// Refresh copies the controller state into the view.
func (m *Model) Refresh() {
	m.snap = m.ctrl.Snapshot()
	if m.selectedIdx >= len(m.snap.Items) {
		m.selectedIdx = max(len(m.snap.Items)-1, 0)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ResultMsg:
		m.Refresh()
		if msg.Result.ServerErr != nil {
			m.statusMsg = fmt.Sprintf("%s failed on the server: %v", msg.Action, msg.Result.ServerErr)
		} else if msg.Result.Changed {
			m.statusMsg = msg.Action
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeConfirmDeleteAll {
			return m.updateConfirm(msg)
		}
		return m.handleListKey(msg)
	}

	if m.mode == modeConfirmDeleteAll {
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) selected() (model.Notification, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.snap.Items) {
		return model.Notification{}, false
	}
	return m.snap.Items[m.selectedIdx], true
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	ctrl := m.ctrl
	n, ok := m.selected()

	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg {
			ctrl.Close()
			return CloseMsg{}
		}

	case key.Matches(msg, m.keys.Down):
		if len(m.snap.Items) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.snap.Items)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.snap.Items) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.snap.Items) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.Open()

	case key.Matches(msg, m.keys.Select):
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			route, res := ctrl.Activate(context.Background(), n.ID)
			if route == nil {
				return ResultMsg{Action: "Marked read", Result: res}
			}
			ctrl.Close()
			return NavigateMsg{Route: *route}
		}

	case key.Matches(msg, m.keys.MarkRead):
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return ResultMsg{Action: "Marked read", Result: ctrl.MarkRead(context.Background(), n.ID)}
		}

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, func() tea.Msg {
			return ResultMsg{Action: "Marked all read", Result: ctrl.MarkAllRead(context.Background())}
		}

	case key.Matches(msg, m.keys.Delete):
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return ResultMsg{Action: "Deleted", Result: ctrl.Delete(context.Background(), n.ID)}
		}

	case key.Matches(msg, m.keys.DeleteAll):
		if len(m.snap.Items) == 0 {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDeleteAll
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) buildConfirmForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete all %d notifications?", len(m.snap.Items))).
				Description("This cannot be undone.").
				Affirmative("Yes, delete all").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		m.mode = modeList
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}

	switch m.confirmForm.State {
	case huh.StateCompleted:
		m.mode = modeList
		confirmed := m.fb.confirm
		if !confirmed {
			return m, nil
		}
		ctrl := m.ctrl
		return m, func() tea.Msg {
			res, err := ctrl.DeleteAll(context.Background(), confirmed)
			if err != nil {
				return ResultMsg{Action: err.Error()}
			}
			return ResultMsg{Action: "Deleted all", Result: res}
		}
	case huh.StateAborted:
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

// View renders the inbox panel.
func (m Model) View() string {
	if m.mode == modeConfirmDeleteAll && m.confirmForm != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.confirmForm.View())
	}
	return m.viewList()
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	title := "Notifications"
	if m.snap.Unread > 0 {
		title = fmt.Sprintf("Notifications (%d unread)", m.snap.Unread)
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	gray := lipgloss.NewStyle().Foreground(theme.ColorGray)

	switch {
	case m.snap.Phase == inbox.PhaseLoading && len(m.snap.Items) == 0:
		b.WriteString(gray.Italic(true).Render("Loading..."))
	case len(m.snap.Items) == 0:
		b.WriteString(gray.Italic(true).Render("You're all caught up."))
	default:
		for i, n := range m.snap.Items {
			line := m.renderItem(n)
			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(line))
			} else {
				b.WriteString(theme.ListItemStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}

	if m.snap.FetchErr != nil {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorRed).Render("Could not refresh: " + m.snap.FetchErr.Error()))
	}
	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Italic(true).Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(gray.Render("enter open | m read | M read all | d delete | D delete all | r refresh | esc back"))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

func (m Model) renderItem(n model.Notification) string {
	marker := "○"
	textStyle := theme.ReadStyle
	if !n.Read {
		marker = "●"
		textStyle = theme.UnreadStyle
	}

	kind := theme.NotificationStyle(string(n.Type)).Render(typeLabel(n.Type))
	age := lipgloss.NewStyle().Foreground(theme.ColorGray).Render(age(n.CreatedAt))

	text := n.Title
	if n.Message != "" {
		text += ": " + n.Message
	}
	return fmt.Sprintf("%s %s %s  %s", marker, kind, textStyle.Render(text), age)
}

func typeLabel(t model.NotificationType) string {
	return strings.ReplaceAll(string(t), "_", " ")
}

func age(t time.Time) string {
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
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}
