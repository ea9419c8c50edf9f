// Package timerwidget renders the sidebar: the running timer, the unread
// badge, the push channel status and the active team filter.
package timerwidget

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/theme"
)

// Model holds what the sidebar shows. It has no behaviour of its own; the
// root model feeds it on every update.
type Model struct {
	widget     model.TimerWidget
	unread     int
	connection model.ChannelConnection
	pushOff    bool
	teamFilter string
	width      int
	height     int
}

// New creates an empty sidebar.
func New(width, height int) Model {
	return Model{width: width, height: height}
}

// SetTimer replaces the timer read model.
func (m *Model) SetTimer(w model.TimerWidget) { m.widget = w }

// SetUnread replaces the unread counter.
func (m *Model) SetUnread(n int) { m.unread = n }

// SetConnection records the push channel state. A nil channel means push
// is disabled in the config.
func (m *Model) SetConnection(c *model.ChannelConnection) {
	if c == nil {
		m.pushOff = true
		return
	}
	m.pushOff = false
	m.connection = *c
}

// SetTeamFilter records the team the task list is filtered to.
func (m *Model) SetTeamFilter(teamID string) { m.teamFilter = teamID }

// SetSize updates the dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// View renders the sidebar.
func (m Model) View() string {
	var b strings.Builder

	label := lipgloss.NewStyle().Foreground(theme.ColorGray)
	inner := m.width - 4

	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Timer"))
	b.WriteString("\n")
	if m.widget.IsRunning && m.widget.ActiveTask != nil {
		b.WriteString(theme.TimerStyle.Render("● " + m.widget.FormattedTime))
		b.WriteString("\n")
		b.WriteString(truncate(m.widget.ActiveTask.Title, inner))
		b.WriteString("\n")
		b.WriteString(label.Render("x to stop"))
	} else {
		b.WriteString(label.Render("No timer running"))
	}
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Inbox"))
	b.WriteString(" ")
	if m.unread > 0 {
		b.WriteString(theme.BadgeStyle.Render(fmt.Sprintf("%d", m.unread)))
	} else {
		b.WriteString(label.Render("0"))
	}
	b.WriteString("\n")

	switch {
	case m.pushOff:
		b.WriteString(label.Render("live updates off"))
	case m.connection.Connected:
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGreen).Render("● live"))
	default:
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Render("○ reconnecting"))
	}
	b.WriteString("\n")

	if m.teamFilter != "" {
		b.WriteString("\n")
		b.WriteString(label.Render("Team filter"))
		b.WriteString("\n")
		b.WriteString(truncate(m.teamFilter, inner))
	}

	return theme.SidebarStyle.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

func truncate(s string, n int) string {
	if n <= 1 || lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) > n-1 {
		r = r[:n-1]
	}
	return string(r) + "…"
}
