// Package teams lists the user's teams. It is where team notifications
// land, and picking a team filters the task list to it.
package teams

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskflow/internal/keys"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/theme"
)

// Lister loads the user's teams.
type Lister interface {
	ListTeams(ctx context.Context) ([]model.Team, error)
}

// BackMsg signals the parent to leave the teams view.
type BackMsg struct{}

// SelectedTeamMsg asks the parent to filter tasks by TeamID.
type SelectedTeamMsg struct {
	TeamID string
}

type teamsLoadedMsg struct {
	teams []model.Team
	err   error
}

// Model is the teams view.
type Model struct {
	lister      Lister
	keys        *keys.KeyMap
	teams       []model.Team
	selectedIdx int
	focusID     string
	err         error
	loading     bool
	width       int
	height      int
}

// New creates a teams view.
func New(l Lister, k *keys.KeyMap, width, height int) Model {
	return Model{lister: l, keys: k, width: width, height: height}
}

// Open loads the teams and moves the cursor to focusID once loaded.
func (m *Model) Open(focusID string) tea.Cmd {
	m.focusID = focusID
	m.loading = true
	l := m.lister
	return func() tea.Msg {
		teams, err := l.ListTeams(context.Background())
		return teamsLoadedMsg{teams: teams, err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case teamsLoadedMsg:
		m.loading = false
		m.teams = msg.teams
		m.err = msg.err
		m.selectedIdx = 0
		for i, t := range m.teams {
			if t.ID == m.focusID {
				m.selectedIdx = i
			}
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Down):
			if len(m.teams) > 0 {
				m.selectedIdx = (m.selectedIdx + 1) % len(m.teams)
			}

		case key.Matches(msg, m.keys.Up):
			if len(m.teams) > 0 {
				m.selectedIdx = (m.selectedIdx - 1 + len(m.teams)) % len(m.teams)
			}

		case key.Matches(msg, m.keys.Refresh):
			return m, m.Open(m.focusID)

		case key.Matches(msg, m.keys.Select):
			if len(m.teams) == 0 {
				return m, nil
			}
			id := m.teams[m.selectedIdx].ID
			return m, func() tea.Msg { return SelectedTeamMsg{TeamID: id} }
		}
	}
	return m, nil
}

// View renders the team list.
func (m Model) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	b.WriteString(titleStyle.Render("Teams"))
	b.WriteString("\n\n")

	gray := lipgloss.NewStyle().Foreground(theme.ColorGray)

	switch {
	case m.loading:
		b.WriteString(gray.Italic(true).Render("Loading teams..."))
	case m.err != nil:
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorRed).Render("Could not load teams: " + m.err.Error()))
	case len(m.teams) == 0:
		b.WriteString(gray.Italic(true).Render("You are not a member of any team."))
	default:
		for i, t := range m.teams {
			label := fmt.Sprintf("%s  %s", t.Name, gray.Render(fmt.Sprintf("%d members", len(t.Members))))
			if t.ID == m.focusID {
				label += lipgloss.NewStyle().Foreground(theme.ColorMagenta).Render("  ★")
			}
			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(label))
			} else {
				b.WriteString(theme.ListItemStyle.Render(label))
			}
			b.WriteString("\n")
			if t.Description != "" && i == m.selectedIdx {
				b.WriteString(theme.ListItemStyle.Render(gray.Render("  " + t.Description)))
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n\n")
	b.WriteString(gray.Render("enter show tasks | r refresh | esc back"))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
